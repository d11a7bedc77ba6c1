// Package account defines the account-level summary produced by the
// aggregator and its fixed 37-column layout.
package account

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Identifier and attribute columns.
const (
	ColSeason                = "Season"
	ColAccount               = "AccountNumber"
	ColSingleGameTickets     = "SingleGameTickets"
	ColPartialPlanTickets    = "PartialPlanTickets"
	ColGroupTickets          = "GroupTickets"
	ColSTM                   = "STM"
	ColAvgSpend              = "AvgSpend"
	ColGamesAttended         = "GamesAttended"
	ColFanSegment            = "FanSegment"
	ColDistanceToArena       = "DistanceToArena"
	ColBasketballPropensity  = "BasketballPropensity"
	ColSocialMediaEngagement = "SocialMediaEngagement"
	ColWeekendGames          = "Weekend Games"
	ColWeekdayGames          = "Weekday Games"
	ColPromoGames            = "Promotional Games"
	ColNonPromoGames         = "Non Promo Games"
	ColNumGamesAttend        = "NumGamesAttend"
)

// Tiers lists the game tiers in column order.
var Tiers = [4]string{"A", "B", "C", "D"}

// Day-type and promo indexes into Summary.Cells, in column order.
const (
	Weekend = 0
	Weekday = 1

	Promo    = 0
	NonPromo = 1
)

var (
	dayNames   = [2]string{"Weekend", "Weekday"}
	promoNames = [2]string{"Promo", "nonPromo"}
)

// AttributeColumns are populated from the account-info table rather than from
// seat data.
var AttributeColumns = []string{
	ColSingleGameTickets, ColPartialPlanTickets, ColGroupTickets, ColSTM, ColAvgSpend,
	ColFanSegment, ColDistanceToArena, ColBasketballPropensity, ColSocialMediaEngagement,
}

// TierColumn returns the tier total column, e.g. "A Games".
func TierColumn(tier int) string {
	return Tiers[tier] + " Games"
}

// CellColumn returns the cell column, e.g. "A + Weekend + nonPromo".
func CellColumn(tier, day, promo int) string {
	return Tiers[tier] + " + " + dayNames[day] + " + " + promoNames[promo]
}

// Columns is the fixed output header.
var Columns = buildColumns()

func buildColumns() []string {
	cols := []string{
		ColSeason, ColAccount, ColSingleGameTickets, ColPartialPlanTickets, ColGroupTickets,
		ColSTM, ColAvgSpend, ColGamesAttended, ColFanSegment, ColDistanceToArena,
		ColBasketballPropensity, ColSocialMediaEngagement,
	}
	for t := range Tiers {
		cols = append(cols, TierColumn(t))
	}
	cols = append(cols, ColWeekendGames, ColWeekdayGames, ColPromoGames, ColNonPromoGames)
	for t := range Tiers {
		for d := range dayNames {
			for p := range promoNames {
				cols = append(cols, CellColumn(t, d, p))
			}
		}
	}
	return append(cols, ColNumGamesAttend)
}

// Attributes are the account-level fields that seat data cannot derive.
type Attributes struct {
	SingleGameTickets     int             `json:"single_game_tickets"`
	PartialPlanTickets    int             `json:"partial_plan_tickets"`
	GroupTickets          int             `json:"group_tickets"`
	STM                   int             `json:"stm"`
	AvgSpend              decimal.Decimal `json:"avg_spend"`
	FanSegment            string          `json:"fan_segment"`
	DistanceToArena       float64         `json:"distance_to_arena"`
	BasketballPropensity  float64         `json:"basketball_propensity"`
	SocialMediaEngagement float64         `json:"social_media_engagement"`
}

// Summary is one account's attendance in one season.
type Summary struct {
	Season        string     `json:"season"`
	AccountNumber string     `json:"account_number"`
	Attributes    Attributes `json:"attributes"`

	GamesAttended  int `json:"games_attended"`
	NumGamesAttend int `json:"num_games_attend"`

	TierGames     [4]int `json:"tier_games"`
	WeekendGames  int    `json:"weekend_games"`
	WeekdayGames  int    `json:"weekday_games"`
	PromoGames    int    `json:"promo_games"`
	NonPromoGames int    `json:"non_promo_games"`

	// Cells is indexed [tier][day][promo].
	Cells [4][2][2]int `json:"-"`

	// SeatEvents is the number of seat records behind the summary. It is not
	// part of the CSV layout and is zero for summaries parsed from a table.
	SeatEvents int `json:"seat_events"`
}

// CellMap returns the cells keyed by column name.
func (s *Summary) CellMap() map[string]int {
	m := make(map[string]int, 16)
	for t := range Tiers {
		for d := range dayNames {
			for p := range promoNames {
				m[CellColumn(t, d, p)] = s.Cells[t][d][p]
			}
		}
	}
	return m
}

// MarshalJSON adds the cells as an object keyed by column name.
func (s Summary) MarshalJSON() ([]byte, error) {
	type plain Summary
	return json.Marshal(struct {
		plain
		Cells map[string]int `json:"cells"`
	}{plain(s), s.CellMap()})
}

// Record returns the summary as a CSV record in Columns order.
func (s *Summary) Record() []string {
	a := s.Attributes
	rec := []string{
		s.Season,
		s.AccountNumber,
		strconv.Itoa(a.SingleGameTickets),
		strconv.Itoa(a.PartialPlanTickets),
		strconv.Itoa(a.GroupTickets),
		strconv.Itoa(a.STM),
		a.AvgSpend.String(),
		strconv.Itoa(s.GamesAttended),
		a.FanSegment,
		formatFloat(a.DistanceToArena),
		formatFloat(a.BasketballPropensity),
		formatFloat(a.SocialMediaEngagement),
	}
	for _, n := range s.TierGames {
		rec = append(rec, strconv.Itoa(n))
	}
	rec = append(rec,
		strconv.Itoa(s.WeekendGames),
		strconv.Itoa(s.WeekdayGames),
		strconv.Itoa(s.PromoGames),
		strconv.Itoa(s.NonPromoGames),
	)
	for t := range s.Cells {
		for d := range s.Cells[t] {
			for p := range s.Cells[t][d] {
				rec = append(rec, strconv.Itoa(s.Cells[t][d][p]))
			}
		}
	}
	return append(rec, strconv.Itoa(s.NumGamesAttend))
}

// Validate checks the derived counts against each other.
func (s *Summary) Validate() error {
	if s.Season == "" || s.AccountNumber == "" {
		return fmt.Errorf("summary missing season or account number")
	}
	if s.GamesAttended != s.NumGamesAttend {
		return fmt.Errorf("games attended %d differs from num games attend %d", s.GamesAttended, s.NumGamesAttend)
	}

	tierSum := 0
	var daySum, promoSum [2]int
	for t := range s.Cells {
		tierCells := 0
		for d := range s.Cells[t] {
			for p := range s.Cells[t][d] {
				n := s.Cells[t][d][p]
				if n < 0 {
					return fmt.Errorf("negative count in %s", CellColumn(t, d, p))
				}
				tierCells += n
				daySum[d] += n
				promoSum[p] += n
			}
		}
		if s.TierGames[t] < 0 {
			return fmt.Errorf("negative count in %s", TierColumn(t))
		}
		if tierCells > s.TierGames[t] {
			return fmt.Errorf("%s cells total %d exceeds %s %d", Tiers[t], tierCells, TierColumn(t), s.TierGames[t])
		}
		tierSum += s.TierGames[t]
	}
	if daySum[Weekend] > s.WeekendGames || daySum[Weekday] > s.WeekdayGames {
		return fmt.Errorf("day-type cells exceed day-type totals")
	}
	if promoSum[Promo] > s.PromoGames || promoSum[NonPromo] > s.NonPromoGames {
		return fmt.Errorf("promo cells exceed promo totals")
	}

	if s.SeatEvents > 0 {
		if s.NumGamesAttend < 1 || s.NumGamesAttend > s.SeatEvents {
			return fmt.Errorf("num games attend %d outside [1, %d]", s.NumGamesAttend, s.SeatEvents)
		}
		if tierSum > s.SeatEvents {
			return fmt.Errorf("tier totals %d exceed seat events %d", tierSum, s.SeatEvents)
		}
		if s.WeekendGames+s.WeekdayGames > s.SeatEvents {
			return fmt.Errorf("day-type totals exceed seat events %d", s.SeatEvents)
		}
		if s.PromoGames+s.NonPromoGames > s.SeatEvents {
			return fmt.Errorf("promo totals exceed seat events %d", s.SeatEvents)
		}
	}
	return nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
