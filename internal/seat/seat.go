// Package seat parses per-seat attendance records and prepares the seat-level
// table (day type and promotional flags) for aggregation.
package seat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/albapepper/fanplan/internal/table"
)

// Seat-level column names.
const (
	ColSeason   = "Season"
	ColAccount  = "AccountNumber"
	ColGame     = "Game"
	ColGameDate = "GameDate"
	ColTier     = "GameTier"
	ColWeekend  = "weekday/weekend game"
	ColPromo    = "Promotional game"
	ColGiveaway = "Giveaway"
)

// RequiredColumns must be present in a seat table handed to the aggregator.
var RequiredColumns = []string{ColSeason, ColAccount, ColGame, ColTier, ColWeekend, ColPromo}

// Tiers lists the valid game tiers in output order.
var Tiers = []string{"A", "B", "C", "D"}

// TierIndex returns the position of tier in Tiers, or -1.
func TierIndex(tier string) int {
	for i, t := range Tiers {
		if t == tier {
			return i
		}
	}
	return -1
}

// Flag is a 0/1 column value that may also be undetermined.
type Flag int8

const (
	FlagUnknown Flag = iota
	FlagNo
	FlagYes
)

func (f Flag) String() string {
	switch f {
	case FlagNo:
		return "0"
	case FlagYes:
		return "1"
	}
	return ""
}

// ParseFlag accepts 0/1 in integer, float or boolean spelling.
func ParseFlag(s string) Flag {
	s = strings.TrimSpace(s)
	if s == "" {
		return FlagUnknown
	}
	if b, err := strconv.ParseBool(s); err == nil {
		if b {
			return FlagYes
		}
		return FlagNo
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		switch f {
		case 0:
			return FlagNo
		case 1:
			return FlagYes
		}
	}
	return FlagUnknown
}

// Record is one ticket-use event.
type Record struct {
	Line          int
	Season        string
	AccountNumber string
	Game          string
	GameDate      string
	Tier          string
	Weekend       Flag
	Promo         Flag
}

// FromTable converts a cleaned seat table into records. Field-level checks
// are left to the aggregator so they can follow its policy.
func FromTable(t *table.Table) ([]Record, error) {
	if err := t.Require(RequiredColumns...); err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		records = append(records, Record{
			Line:          i + 1,
			Season:        strings.TrimSpace(row[ColSeason]),
			AccountNumber: strings.TrimSpace(row[ColAccount]),
			Game:          strings.TrimSpace(row[ColGame]),
			GameDate:      strings.TrimSpace(row[ColGameDate]),
			Tier:          strings.TrimSpace(row[ColTier]),
			Weekend:       ParseFlag(row[ColWeekend]),
			Promo:         ParseFlag(row[ColPromo]),
		})
	}
	return records, nil
}

// Policy decides what happens to records with an invalid tier or an
// undetermined flag.
type Policy string

const (
	// PolicyDrop excludes the record from the affected counts.
	PolicyDrop Policy = "drop"
	// PolicyStrict fails the run on the first such record.
	PolicyStrict Policy = "strict"
)

// ParsePolicy validates a policy name. Empty means PolicyDrop.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", fmt.Errorf("unknown invalid-record policy %q (want drop or strict)", s)
}
