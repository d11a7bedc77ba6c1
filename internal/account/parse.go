package account

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/albapepper/fanplan/internal/table"
)

// ParseMoney parses a currency amount such as "$1,250.00". Blank parses as
// zero.
func ParseMoney(s string) (decimal.Decimal, error) {
	s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ParseSummaries reads an account-level table in the Columns layout. Extra
// columns are ignored. Attribute columns may hold currency or float text.
func ParseSummaries(t *table.Table) ([]Summary, error) {
	if err := t.Require(Columns...); err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(t.Rows))
	for i, row := range t.Rows {
		s, err := parseRow(i+1, row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseRow(line int, row map[string]string) (Summary, error) {
	p := rowParser{line: line, row: row}
	s := Summary{
		Season:        strings.TrimSpace(row[ColSeason]),
		AccountNumber: strings.TrimSpace(row[ColAccount]),
	}
	if s.Season == "" {
		return s, &table.InputFormatError{Line: line, Column: ColSeason, Reason: "missing value"}
	}
	if s.AccountNumber == "" {
		return s, &table.InputFormatError{Line: line, Column: ColAccount, Reason: "missing value"}
	}

	s.Attributes = Attributes{
		SingleGameTickets:     p.count(ColSingleGameTickets),
		PartialPlanTickets:    p.count(ColPartialPlanTickets),
		GroupTickets:          p.count(ColGroupTickets),
		STM:                   p.count(ColSTM),
		AvgSpend:              p.money(ColAvgSpend),
		FanSegment:            strings.TrimSpace(row[ColFanSegment]),
		DistanceToArena:       p.float(ColDistanceToArena),
		BasketballPropensity:  p.float(ColBasketballPropensity),
		SocialMediaEngagement: p.float(ColSocialMediaEngagement),
	}
	s.GamesAttended = p.count(ColGamesAttended)
	s.NumGamesAttend = p.count(ColNumGamesAttend)
	for t := range Tiers {
		s.TierGames[t] = p.count(TierColumn(t))
		for d := range dayNames {
			for pr := range promoNames {
				s.Cells[t][d][pr] = p.count(CellColumn(t, d, pr))
			}
		}
	}
	s.WeekendGames = p.count(ColWeekendGames)
	s.WeekdayGames = p.count(ColWeekdayGames)
	s.PromoGames = p.count(ColPromoGames)
	s.NonPromoGames = p.count(ColNonPromoGames)

	if p.err != nil {
		return s, p.err
	}
	return s, nil
}

// rowParser keeps the first conversion error so a row can be parsed without
// checking every field.
type rowParser struct {
	line int
	row  map[string]string
	err  error
}

func (p *rowParser) fail(col, reason string) {
	if p.err == nil {
		p.err = &table.InputFormatError{Line: p.line, Column: col, Value: p.row[col], Reason: reason}
	}
}

func (p *rowParser) count(col string) int {
	v := strings.TrimSpace(p.row[col])
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) {
		p.fail(col, "not a whole number")
		return 0
	}
	return int(f)
}

func (p *rowParser) float(col string) float64 {
	v := strings.TrimSpace(p.row[col])
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, "not a number")
		return 0
	}
	return f
}

func (p *rowParser) money(col string) decimal.Decimal {
	d, err := ParseMoney(p.row[col])
	if err != nil {
		p.fail(col, "not an amount")
		return decimal.Zero
	}
	return d
}
