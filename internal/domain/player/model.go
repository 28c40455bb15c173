package player

import (
	"fmt"
	"strings"
)

// Category codes of the scraped statistical groupings.
const (
	CategoryStandard  = "standard"
	CategoryOffensive = "offensive"
	CategoryDefensive = "defensive"
)

// SeededCategories are inserted by the schema bootstrap.
var SeededCategories = []string{CategoryOffensive, CategoryDefensive, CategoryStandard}

// SeasonMetricColumns are the fixed numeric columns of player_season, in
// storage order.
var SeasonMetricColumns = []string{
	"matches_played",
	"matches_started",
	"minutes_played",
	"goals_scored",
	"assists_made",
	"goals_plus_assists",
	"goals_excluding_penalties",
	"penalty_goals",
	"penalty_attempts",
	"yellow_cards",
	"red_cards",
	"expected_goals",
	"non_penalty_expected_goals",
	"expected_assists",
	"combined_non_penalty_expected_goal_contributions",
	"progressive_carries",
	"progressive_passes",
	"progressive_receptions",
	"ninety_min_equivalents",
}

var seasonMetricColumnSet = func() map[string]struct{} {
	out := make(map[string]struct{}, len(SeasonMetricColumns))
	for _, col := range SeasonMetricColumns {
		out[col] = struct{}{}
	}
	return out
}()

// IsSeasonMetricColumn reports whether col is one of SeasonMetricColumns.
func IsSeasonMetricColumn(col string) bool {
	_, ok := seasonMetricColumnSet[col]
	return ok
}

// Player is the identity row of a scraped footballer.
type Player struct {
	ID              int64
	Name            string
	ShortName       *string
	Nationality     *string
	NationalityISO2 *string
	NationalityFIFA *string
	BirthYear       *int
	ExternalID      *int64
}

func (p Player) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("player name is required")
	}
	if p.ExternalID != nil && *p.ExternalID <= 0 {
		return fmt.Errorf("external player id must be greater than zero")
	}
	return nil
}

// UpsertOutcome describes how a player write was resolved.
type UpsertOutcome struct {
	ID       int64
	Inserted bool
	// Collision is set when a name-keyed match disagrees on birth year with
	// the stored row; the rows are still merged.
	Collision bool
}

// Season is one row per (player, year_code).
type Season struct {
	ID       int64
	PlayerID int64
	YearCode string
	Age      *float64
	Position *string
	Club     *string
	// Metrics holds SeasonMetricColumns values; absent keys are stored as NULL.
	Metrics map[string]float64
}

func (s Season) Validate() error {
	if s.PlayerID <= 0 {
		return fmt.Errorf("season player id must be greater than zero")
	}
	if strings.TrimSpace(s.YearCode) == "" {
		return fmt.Errorf("season year code is required")
	}
	for col := range s.Metrics {
		if !IsSeasonMetricColumn(col) {
			return fmt.Errorf("unknown season metric column %q", col)
		}
	}
	return nil
}

// Valuation is a market value point; one per (player, date).
type Valuation struct {
	PlayerID int64
	Date     string
	Amount   float64
}

func (v Valuation) Validate() error {
	if v.PlayerID <= 0 {
		return fmt.Errorf("valuation player id must be greater than zero")
	}
	if strings.TrimSpace(v.Date) == "" {
		return fmt.Errorf("valuation date is required")
	}
	return nil
}

// SeasonStat is one raw scraped key/value pair of a season category block.
type SeasonStat struct {
	SeasonID   int64
	CategoryID int64
	KeyRaw     string
	KeyNorm    *string
	ValueNum   *float64
	ValueText  *string
	Unit       *string
}

func (s SeasonStat) Validate() error {
	if s.SeasonID <= 0 {
		return fmt.Errorf("stat season id must be greater than zero")
	}
	if s.CategoryID <= 0 {
		return fmt.Errorf("stat category id must be greater than zero")
	}
	if s.KeyRaw == "" {
		return fmt.Errorf("stat raw key is required")
	}
	return nil
}

// Counts is the number of rows per table.
type Counts struct {
	Players     int64 `db:"players"`
	Seasons     int64 `db:"seasons"`
	Valuations  int64 `db:"valuations"`
	Categories  int64 `db:"categories"`
	SeasonStats int64 `db:"season_stats"`
}
