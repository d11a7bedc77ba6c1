// Package features derives plan-targeting features from an account-level
// table: spend ratios, game-type preference, weekend and promotional
// affinity, and arena proximity.
package features

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/albapepper/fanplan/internal/account"
	"github.com/albapepper/fanplan/internal/table"
)

// Derived column names.
const (
	ColTotalWeekdayGames       = "Total_Weekday_Games"
	ColCostSensitivityIndex    = "CostSensitivityIndex"
	ColSpendingCategory        = "Spending_Category"
	ColAvgSpendWeekday         = "AvgSpend_Weekday"
	ColAvgSpendWeekend         = "AvgSpend_Weekend"
	ColWeekdayWeekendSpendDiff = "Weekday_Weekend_Spend_Diff"
	ColWeekendGamesRatio       = "Weekend_Games_Ratio"
	ColTotalTicketsPurchased   = "Total_Tickets_Purchased"
	ColMostCommonGameType      = "Most_Common_Game_Type"
	ColMostCommonGameRatio     = "Most_Common_Game_Ratio"
	ColMarqueeGameRatio        = "Marquee_Game_Ratio"
	ColTotalWeekendGames       = "Total_Weekend_Games"
	ColWeekendGameRatio        = "Weekend_Game_Ratio"
	ColTotalPromoGames         = "Total_Promo_Games"
	ColPromoGamesRatio         = "Promo_Games_Ratio"
	ColArenaProximityFactor    = "ArenaProximityFactor"
)

// SpendingLabels name the AvgSpend terciles from lowest to highest.
var SpendingLabels = []string{"Low", "Mid", "High"}

var required = []string{
	account.ColWeekdayGames, account.ColWeekendGames, account.ColNumGamesAttend,
	account.ColSingleGameTickets, account.ColAvgSpend, account.ColPromoGames,
	account.ColSocialMediaEngagement, account.ColBasketballPropensity, account.ColDistanceToArena,
	account.TierColumn(0), account.TierColumn(1), account.TierColumn(2), account.TierColumn(3),
}

// Result tracks counts from a Derive pass.
type Result struct {
	Rows          int
	SpendValues   int
	SpendEdges    []float64
	UnpricedRows  int
	NoGameHistory int
}

// Summary returns a human-readable summary of the pass.
func (r *Result) Summary() string {
	return fmt.Sprintf("rows=%d priced=%d unpriced=%d no_game_history=%d spend_edges=%v",
		r.Rows, r.SpendValues, r.UnpricedRows, r.NoGameHistory, r.SpendEdges)
}

// Derive adds the feature columns to t in place. Existing columns keep their
// position and new ones are appended. Ratios with a zero or missing
// denominator are left blank.
func Derive(t *table.Table) (*Result, error) {
	if err := t.Require(required...); err != nil {
		return nil, err
	}
	res := &Result{Rows: t.Len()}

	spend := make([]*decimal.Decimal, t.Len())
	for i, row := range t.Rows {
		if d, err := account.ParseMoney(row[account.ColAvgSpend]); err == nil && strings.TrimSpace(row[account.ColAvgSpend]) != "" {
			spend[i] = &d
			res.SpendValues++
		} else {
			res.UnpricedRows++
		}
	}
	categories, edges, err := tercile(spend)
	if err != nil {
		return nil, err
	}
	res.SpendEdges = edges

	for _, c := range []string{
		ColTotalWeekdayGames, ColCostSensitivityIndex, account.ColAvgSpend, ColSpendingCategory,
		ColAvgSpendWeekday, ColAvgSpendWeekend, ColWeekdayWeekendSpendDiff, ColWeekendGamesRatio,
		ColTotalTicketsPurchased, ColMostCommonGameType, ColMostCommonGameRatio, ColMarqueeGameRatio,
		ColTotalWeekendGames, ColWeekendGameRatio, ColTotalPromoGames, ColPromoGamesRatio,
		account.ColSocialMediaEngagement, account.ColBasketballPropensity, ColArenaProximityFactor,
	} {
		t.AddColumn(c)
	}

	for i, row := range t.Rows {
		weekday, okWeekday := number(row[account.ColWeekdayGames])
		weekend, okWeekend := number(row[account.ColWeekendGames])
		games, okGames := number(row[account.ColNumGamesAttend])
		if !okGames || games == 0 {
			res.NoGameHistory++
		}

		row[ColTotalWeekdayGames] = numeric(row[account.ColWeekdayGames])
		row[ColCostSensitivityIndex] = ratio(row[account.ColSingleGameTickets], row[account.ColNumGamesAttend])

		row[account.ColAvgSpend] = ""
		row[ColAvgSpendWeekday] = ""
		row[ColAvgSpendWeekend] = ""
		row[ColWeekdayWeekendSpendDiff] = ""
		if s := spend[i]; s != nil {
			row[account.ColAvgSpend] = s.String()
			perWeekday, okD := perGame(*s, weekday, okWeekday)
			perWeekend, okE := perGame(*s, weekend, okWeekend)
			if okD {
				row[ColAvgSpendWeekday] = perWeekday.String()
			}
			if okE {
				row[ColAvgSpendWeekend] = perWeekend.String()
			}
			if okD && okE {
				row[ColWeekdayWeekendSpendDiff] = perWeekend.Sub(perWeekday).String()
			}
		}
		row[ColSpendingCategory] = categories[i]

		row[ColWeekendGamesRatio] = ratio(row[account.ColWeekendGames], row[account.ColNumGamesAttend])

		total, best, bestTier, okTiers := tierStats(row)
		row[ColTotalTicketsPurchased] = ""
		row[ColMostCommonGameType] = ""
		row[ColMostCommonGameRatio] = ""
		if okTiers {
			row[ColTotalTicketsPurchased] = formatNumber(total)
			row[ColMostCommonGameType] = account.Tiers[bestTier]
			if total != 0 {
				row[ColMostCommonGameRatio] = formatRatio(best / total)
			}
		}
		row[ColMarqueeGameRatio] = ratio(row[account.TierColumn(0)], row[account.ColNumGamesAttend])

		row[ColTotalWeekendGames] = numeric(row[account.ColWeekendGames])
		row[ColWeekendGameRatio] = ratio(row[account.ColWeekendGames], row[account.ColNumGamesAttend])
		row[ColTotalPromoGames] = numeric(row[account.ColPromoGames])
		row[ColPromoGamesRatio] = ratio(row[account.ColPromoGames], row[account.ColNumGamesAttend])

		row[account.ColSocialMediaEngagement] = numeric(row[account.ColSocialMediaEngagement])
		row[account.ColBasketballPropensity] = numeric(row[account.ColBasketballPropensity])
		row[ColArenaProximityFactor] = ratio("1", row[account.ColDistanceToArena])
	}
	return res, nil
}

// tercile labels each spend value Low, Mid or High using quantile bin edges
// with linear interpolation. The lowest edge is inclusive and the others are
// right-inclusive. Rows without a spend value get no label.
func tercile(spend []*decimal.Decimal) ([]string, []float64, error) {
	labels := make([]string, len(spend))
	var values []float64
	for _, s := range spend {
		if s != nil {
			values = append(values, s.InexactFloat64())
		}
	}
	if len(values) == 0 {
		return labels, nil, nil
	}
	sort.Float64s(values)

	n := len(SpendingLabels)
	edges := make([]float64, n+1)
	for i := range edges {
		edges[i] = quantile(values, float64(i)/float64(n))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] == edges[i-1] {
			return nil, nil, fmt.Errorf("spending category: bin edges must be unique: %v", edges)
		}
	}

	for i, s := range spend {
		if s == nil {
			continue
		}
		v := s.InexactFloat64()
		for b := 0; b < n; b++ {
			if v <= edges[b+1] {
				labels[i] = SpendingLabels[b]
				break
			}
		}
	}
	return labels, edges, nil
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := math.Floor(pos)
	hi := math.Ceil(pos)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (sorted[int(hi)]-sorted[int(lo)])*(pos-lo)
}

func perGame(spend decimal.Decimal, games float64, ok bool) (decimal.Decimal, bool) {
	if !ok || games == 0 {
		return decimal.Zero, false
	}
	return spend.Div(decimal.NewFromFloat(games)), true
}

// tierStats returns the tier total, the largest tier count and its index. The
// first tier wins ties.
func tierStats(row map[string]string) (total, best float64, bestTier int, ok bool) {
	bestTier = -1
	for t := range account.Tiers {
		v, valid := number(row[account.TierColumn(t)])
		if !valid {
			continue
		}
		total += v
		if bestTier < 0 || v > best {
			best, bestTier = v, t
		}
	}
	return total, best, bestTier, bestTier >= 0
}

func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// numeric keeps s if it parses as a number and blanks it otherwise.
func numeric(s string) string {
	if _, ok := number(s); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func ratio(num, den string) string {
	n, okN := number(num)
	d, okD := number(den)
	if !okN || !okD || d == 0 {
		return ""
	}
	return formatRatio(n / d)
}

// formatRatio writes a float the way a float column is written: integral
// values keep a trailing ".0".
func formatRatio(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
