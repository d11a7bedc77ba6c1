// Package aggregate rolls seat records up into one account summary per
// (season, account).
package aggregate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/albapepper/fanplan/internal/account"
	"github.com/albapepper/fanplan/internal/seat"
	"github.com/albapepper/fanplan/internal/table"
)

// Options configures Aggregate.
type Options struct {
	Policy  seat.Policy
	Workers int
}

// Result tracks counts from an aggregation run.
type Result struct {
	Records           int
	Accounts          int
	InvalidTier       int
	UndeterminedDay   int
	UndeterminedPromo int
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"records=%d accounts=%d invalid_tier=%d undetermined_day=%d undetermined_promo=%d",
		r.Records, r.Accounts, r.InvalidTier, r.UndeterminedDay, r.UndeterminedPromo,
	)
}

// groupKey identifies a partition.
type groupKey struct {
	season  string
	account string
}

type group struct {
	key     groupKey
	members []int
}

// Aggregate builds one summary per distinct (season, account), ordered by
// season then account. Input records are not modified.
//
// An empty input returns an empty slice together with *table.EmptyInputError.
// A record missing a required field fails the run with
// *table.InputFormatError. Records with a tier outside A-D or an undetermined
// flag fail the run under seat.PolicyStrict; under seat.PolicyDrop they are
// left out of the counts the bad value feeds but still count toward games
// attended.
func Aggregate(records []seat.Record, opts Options) ([]account.Summary, *Result, error) {
	res := &Result{Records: len(records)}
	if len(records) == 0 {
		return []account.Summary{}, res, &table.EmptyInputError{}
	}
	if err := check(records, opts.Policy, res); err != nil {
		return nil, nil, err
	}

	groups := partition(records)
	res.Accounts = len(groups)

	out := make([]account.Summary, len(groups))
	workers := opts.Workers
	if workers > len(groups) {
		workers = len(groups)
	}
	if workers <= 1 {
		for i := range groups {
			out[i] = summarize(records, groups[i])
		}
	} else {
		jobs := make(chan int, len(groups))
		for i := range groups {
			jobs <- i
		}
		close(jobs)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					out[i] = summarize(records, groups[i])
				}
			}()
		}
		wg.Wait()
	}

	for i := range out {
		if err := out[i].Validate(); err != nil {
			return nil, nil, fmt.Errorf("account %s season %s: %w", out[i].AccountNumber, out[i].Season, err)
		}
	}
	return out, res, nil
}

// check rejects records missing required fields and applies the policy to
// invalid tiers and undetermined flags.
func check(records []seat.Record, policy seat.Policy, res *Result) error {
	strict := policy == seat.PolicyStrict
	for i := range records {
		r := &records[i]
		line := r.Line
		if line == 0 {
			line = i + 1
		}
		for _, f := range [...]struct{ col, val string }{
			{seat.ColSeason, r.Season},
			{seat.ColAccount, r.AccountNumber},
			{seat.ColGame, r.Game},
			{seat.ColTier, r.Tier},
		} {
			if f.val == "" {
				return &table.InputFormatError{Line: line, Column: f.col, Reason: "missing value"}
			}
		}

		if seat.TierIndex(r.Tier) < 0 {
			if strict {
				return &table.InputFormatError{Line: line, Column: seat.ColTier, Value: r.Tier, Reason: "invalid tier"}
			}
			res.InvalidTier++
		}
		if r.Weekend == seat.FlagUnknown {
			if strict {
				return &table.InputFormatError{Line: line, Column: seat.ColWeekend, Reason: "undetermined day type"}
			}
			res.UndeterminedDay++
		}
		if r.Promo == seat.FlagUnknown {
			if strict {
				return &table.InputFormatError{Line: line, Column: seat.ColPromo, Reason: "undetermined promotional status"}
			}
			res.UndeterminedPromo++
		}
	}
	return nil
}

// partition groups record indexes by (season, account) and orders the groups.
func partition(records []seat.Record) []group {
	index := make(map[groupKey]int)
	var groups []group
	for i := range records {
		k := groupKey{season: records[i].Season, account: records[i].AccountNumber}
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, group{key: k})
		}
		groups[g].members = append(groups[g].members, i)
	}
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].key, groups[j].key
		if c := table.Compare(a.season, b.season); c != 0 {
			return c < 0
		}
		return table.Compare(a.account, b.account) < 0
	})
	return groups
}

func summarize(records []seat.Record, g group) account.Summary {
	s := account.Summary{
		Season:        g.key.season,
		AccountNumber: g.key.account,
		SeatEvents:    len(g.members),
	}

	games := make(map[string]struct{}, len(g.members))
	for _, i := range g.members {
		r := &records[i]
		games[r.Game] = struct{}{}

		switch r.Weekend {
		case seat.FlagYes:
			s.WeekendGames++
		case seat.FlagNo:
			s.WeekdayGames++
		}
		switch r.Promo {
		case seat.FlagYes:
			s.PromoGames++
		case seat.FlagNo:
			s.NonPromoGames++
		}

		t := seat.TierIndex(r.Tier)
		if t < 0 {
			continue
		}
		s.TierGames[t]++

		day, promo := dayIndex(r.Weekend), promoIndex(r.Promo)
		if day >= 0 && promo >= 0 {
			s.Cells[t][day][promo]++
		}
	}

	s.NumGamesAttend = len(games)
	s.GamesAttended = s.NumGamesAttend
	return s
}

func dayIndex(f seat.Flag) int {
	switch f {
	case seat.FlagYes:
		return account.Weekend
	case seat.FlagNo:
		return account.Weekday
	}
	return -1
}

func promoIndex(f seat.Flag) int {
	switch f {
	case seat.FlagYes:
		return account.Promo
	case seat.FlagNo:
		return account.NonPromo
	}
	return -1
}

// ToTable lays summaries out in the fixed account-level header.
func ToTable(summaries []account.Summary) *table.Table {
	t := table.New(account.Columns)
	for i := range summaries {
		t.AppendRecord(summaries[i].Record())
	}
	return t
}

// Table runs the aggregation over a cleaned seat table. On empty input it
// returns a header-only table together with *table.EmptyInputError.
func Table(in *table.Table, opts Options) (*table.Table, []account.Summary, *Result, error) {
	records, err := seat.FromTable(in)
	if err != nil {
		return nil, nil, nil, err
	}
	summaries, res, err := Aggregate(records, opts)
	if summaries == nil {
		return nil, nil, nil, err
	}
	return ToTable(summaries), summaries, res, err
}
