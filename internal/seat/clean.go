package seat

import (
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/fanplan/internal/table"
)

// dateLayouts are tried in order when parsing GameDate. Fractional seconds
// after a seconds field are accepted without a layout of their own.
var dateLayouts = []string{
	// ISO
	"2006-01-02",
	"2006-1-2",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
	"2006/01/02",
	"20060102",

	// US month first
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04PM",
	"1/2/2006 3:04 pm",
	"1-2-2006",

	// Month names
	"Jan 2, 2006",
	"January 2, 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"02-Jan-06",
	"Jan 2, 2006 3:04 PM",
}

// ParseGameDate parses a game date in any of the accepted layouts.
func ParseGameDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// WeekendFlag returns FlagYes for Saturday and Sunday games.
func WeekendFlag(d time.Time) Flag {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return FlagYes
	}
	return FlagNo
}

// CleanOptions configures Clean.
type CleanOptions struct {
	Policy     Policy
	StrictJoin bool
}

// CleanResult tracks counts from a cleaning pass.
type CleanResult struct {
	Rows           int
	Joined         int
	Unmatched      int
	Undated        int
	Promotional    int
	DuplicateGames int
}

// Summary returns a human-readable summary of the cleaning pass.
func (r *CleanResult) Summary() string {
	return fmt.Sprintf("rows=%d joined=%d unmatched=%d undated=%d promotional=%d duplicate_games=%d",
		r.Rows, r.Joined, r.Unmatched, r.Undated, r.Promotional, r.DuplicateGames)
}

// Clean derives the day-type flag from GameDate, left-joins the game table on
// Game and sets the promotional flag from the game's Giveaway text. Game
// columns other than Game and Giveaway are appended unless the seat table
// already has a column of the same name. When the game table repeats a game
// its first row is used.
func Clean(seats, games *table.Table, opts CleanOptions) (*table.Table, *CleanResult, error) {
	if err := seats.Require(ColGame, ColGameDate); err != nil {
		return nil, nil, fmt.Errorf("seat table: %w", err)
	}
	if err := games.Require(ColGame, ColGiveaway); err != nil {
		return nil, nil, fmt.Errorf("game table: %w", err)
	}

	res := &CleanResult{}
	index := make(map[string]map[string]string, len(games.Rows))
	for _, row := range games.Rows {
		g := strings.TrimSpace(row[ColGame])
		if _, ok := index[g]; ok {
			res.DuplicateGames++
			continue
		}
		index[g] = row
	}

	headers := append([]string(nil), seats.Headers...)
	if !seats.Has(ColWeekend) {
		headers = append(headers, ColWeekend)
	}
	var joined []string
	for _, h := range games.Headers {
		if h == ColGame || h == ColGiveaway || seats.Has(h) || h == ColWeekend || h == ColPromo {
			continue
		}
		joined = append(joined, h)
		headers = append(headers, h)
	}
	if !seats.Has(ColPromo) {
		headers = append(headers, ColPromo)
	}
	if seats.Has(ColGiveaway) {
		headers = removeString(headers, ColGiveaway)
	}

	out := table.New(headers)
	for i, src := range seats.Rows {
		line := i + 1
		row := make(map[string]string, len(headers))
		for _, h := range headers {
			row[h] = src[h]
		}

		if d, ok := ParseGameDate(src[ColGameDate]); ok {
			row[ColWeekend] = WeekendFlag(d).String()
		} else {
			if opts.Policy == PolicyStrict {
				return nil, nil, &table.InputFormatError{
					Line: line, Column: ColGameDate, Value: src[ColGameDate], Reason: "unparseable date",
				}
			}
			row[ColWeekend] = FlagUnknown.String()
			res.Undated++
		}

		game := strings.TrimSpace(src[ColGame])
		g, ok := index[game]
		if !ok {
			if opts.StrictJoin {
				return nil, nil, &table.JoinMismatchError{Line: line, Game: game}
			}
			res.Unmatched++
			for _, h := range joined {
				row[h] = ""
			}
			row[ColPromo] = FlagNo.String()
		} else {
			res.Joined++
			for _, h := range joined {
				row[h] = g[h]
			}
			promo := FlagNo
			if strings.TrimSpace(g[ColGiveaway]) != "" {
				promo = FlagYes
				res.Promotional++
			}
			row[ColPromo] = promo.String()
		}

		out.Append(row)
		res.Rows++
	}
	return out, res, nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
