package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

// legacySchema is the shape written by earlier loaders: no migration table,
// no ninety_min_equivalents column and no upsert indexes.
const legacySchema = `
CREATE TABLE player (
  id INTEGER PRIMARY KEY,
  name TEXT,
  nationality TEXT,
  birth_year INTEGER,
  transfermarkt_player_id INTEGER UNIQUE,
  short_name TEXT,
  nationality_iso2 TEXT,
  nationality_fifa TEXT
);
CREATE TABLE player_season (
  id INTEGER PRIMARY KEY,
  player_id INTEGER NOT NULL,
  year_code TEXT,
  age REAL,
  position TEXT,
  club TEXT,
  matches_played REAL,
  matches_started REAL,
  minutes_played REAL,
  goals_scored REAL,
  assists_made REAL,
  goals_plus_assists REAL,
  goals_excluding_penalties REAL,
  penalty_goals REAL,
  penalty_attempts REAL,
  yellow_cards REAL,
  red_cards REAL,
  expected_goals REAL,
  non_penalty_expected_goals REAL,
  expected_assists REAL,
  combined_non_penalty_expected_goal_contributions REAL,
  progressive_carries REAL,
  progressive_passes REAL,
  progressive_receptions REAL
);
CREATE TABLE player_valuation (id INTEGER PRIMARY KEY, player_id INTEGER NOT NULL, date TEXT, amount REAL);
CREATE TABLE stat_category (id INTEGER PRIMARY KEY, code TEXT UNIQUE NOT NULL);
CREATE TABLE player_season_stat (
  id INTEGER PRIMARY KEY,
  player_season_id INTEGER NOT NULL,
  category_id INTEGER NOT NULL,
  key_raw TEXT NOT NULL,
  key_norm TEXT,
  value_num REAL,
  value_text TEXT,
  unit TEXT,
  UNIQUE (player_season_id, category_id, key_raw)
);
`

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "players.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func execAll(t *testing.T, db *sqlx.DB, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
}

func TestSchemaManager_EnsureFreshStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	manager := NewSchemaManager(db, logging.NewNop())

	report, err := manager.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, report.MigrationsRan)
	assert.Equal(t, uint(1), report.MigrationVersion)
	assert.ElementsMatch(t, requiredTables, report.TablesCreated)
	assert.Empty(t, report.ColumnsAdded)
	assert.ElementsMatch(t, []string{"ux_player_season_player_year", "ux_val_player_date", "ix_player_season_player"}, report.IndexesCreated)
	assert.Equal(t, int64(3), report.CategoriesSeeded)

	again, err := manager.Ensure(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed(), "second bootstrap must be a no-op: %+v", again)

	var codes []string
	require.NoError(t, db.Select(&codes, "SELECT code FROM stat_category ORDER BY id"))
	assert.Equal(t, []string{"offensive", "defensive", "standard"}, codes)
}

func TestSchemaManager_PatchesLegacyStore(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	execAll(t, db,
		legacySchema,
		`INSERT INTO player (id, name, short_name) VALUES (1, 'Bukayo Saka', 'B. Saka')`,
		`INSERT INTO player_season (id, player_id, year_code, matches_played, goals_scored) VALUES (10, 1, '2019/20', 26, 1)`,
		`INSERT INTO stat_category (code) VALUES ('passing')`,
	)

	report, err := NewSchemaManager(db, logging.NewNop()).Ensure(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.TablesCreated)
	assert.Equal(t, []string{"player_season.ninety_min_equivalents"}, report.ColumnsAdded)
	assert.Equal(t, int64(3), report.CategoriesSeeded)

	cols, err := columnSet(ctx, db, "player_season")
	require.NoError(t, err)
	assert.Contains(t, cols, "ninety_min_equivalents")

	var row struct {
		ID            int64    `db:"id"`
		YearCode      string   `db:"year_code"`
		MatchesPlayed float64  `db:"matches_played"`
		GoalsScored   float64  `db:"goals_scored"`
		Ninety        *float64 `db:"ninety_min_equivalents"`
	}
	require.NoError(t, db.Get(&row, `SELECT id, year_code, matches_played, goals_scored, ninety_min_equivalents FROM player_season`))
	assert.Equal(t, int64(10), row.ID)
	assert.Equal(t, "2019/20", row.YearCode)
	assert.Equal(t, 26.0, row.MatchesPlayed)
	assert.Equal(t, 1.0, row.GoalsScored)
	assert.Nil(t, row.Ninety)

	var players int
	require.NoError(t, db.Get(&players, `SELECT COUNT(1) FROM player WHERE name = 'Bukayo Saka'`))
	assert.Equal(t, 1, players)

	var categories int
	require.NoError(t, db.Get(&categories, `SELECT COUNT(1) FROM stat_category`))
	assert.Equal(t, 4, categories)
}

func TestSchemaManager_PatchAddsExternalIDIndex(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	execAll(t, db,
		`CREATE TABLE player (id INTEGER PRIMARY KEY, name TEXT, nationality TEXT, birth_year INTEGER, short_name TEXT)`,
	)

	report, err := NewSchemaManager(db, logging.NewNop()).Ensure(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"player.transfermarkt_player_id",
		"player.nationality_iso2",
		"player.nationality_fifa",
	}, report.ColumnsAdded)
	assert.Contains(t, report.IndexesCreated, "ux_player_transfermarkt_id")
}

func TestSchemaManager_FailureIsFatal(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	execAll(t, db,
		legacySchema,
		`INSERT INTO player (id, name) VALUES (1, 'Dup')`,
		`INSERT INTO player_season (player_id, year_code) VALUES (1, '2019/20')`,
		`INSERT INTO player_season (player_id, year_code) VALUES (1, '2019/20')`,
	)

	_, err := NewSchemaManager(db, logging.NewNop()).Ensure(ctx)
	require.Error(t, err)
	assert.True(t, crerr.Is(err, ErrSchema), "expected ErrSchema, got %v", err)

	cols, err := columnSet(ctx, db, "player_season")
	require.NoError(t, err)
	assert.NotContains(t, cols, "ninety_min_equivalents", "failed patch must not be partially committed")
}

func TestSchemaManager_IndexSetSkipsInternalNames(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := NewSchemaManager(db, logging.NewNop()).Ensure(ctx)
	require.NoError(t, err)

	names, err := indexSet(ctx, db)
	require.NoError(t, err)
	assert.NotEmpty(t, names)
	for name := range names {
		assert.False(t, strings.HasPrefix(name, "sqlite_"), "internal index %s listed", name)
	}
}
