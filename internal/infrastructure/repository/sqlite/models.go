package sqlite

import (
	"database/sql"

	qb "github.com/riskibarqy/playerstats-ingest/internal/platform/querybuilder"
)

type playerInsertModel struct {
	Name            string  `db:"name"`
	ShortName       *string `db:"short_name"`
	Nationality     *string `db:"nationality"`
	BirthYear       *int    `db:"birth_year"`
	ExternalID      *int64  `db:"transfermarkt_player_id"`
	NationalityISO2 *string `db:"nationality_iso2"`
	NationalityFIFA *string `db:"nationality_fifa"`
}

type playerMatchRow struct {
	ID        int64         `db:"id"`
	BirthYear sql.NullInt64 `db:"birth_year"`
}

type valuationInsertModel struct {
	PlayerID int64   `db:"player_id"`
	Date     string  `db:"date"`
	Amount   float64 `db:"amount"`
}

type seasonStatInsertModel struct {
	SeasonID   int64    `db:"player_season_id"`
	CategoryID int64    `db:"category_id"`
	KeyRaw     string   `db:"key_raw"`
	KeyNorm    *string  `db:"key_norm"`
	ValueNum   *float64 `db:"value_num"`
	ValueText  *string  `db:"value_text"`
	Unit       *string  `db:"unit"`
}

type categoryInsertModel struct {
	Code string `db:"code"`
}

type categoryRow struct {
	ID   int64  `db:"id"`
	Code string `db:"code"`
}

// mustModelColumns lists the db columns of model minus skip. Used for package
// level column lists, so a broken model fails at init.
func mustModelColumns(model any, skip ...string) []string {
	cols, err := qb.ModelColumns(model, skip...)
	if err != nil {
		panic(err)
	}
	return cols
}
