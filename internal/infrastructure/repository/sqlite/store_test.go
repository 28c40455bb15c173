package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := openTestDB(t)
	_, err := NewSchemaManager(db, logging.NewNop()).Ensure(context.Background())
	require.NoError(t, err)
	return NewStore(db, logging.NewNop())
}

func begin(t *testing.T, store *Store) player.UnitOfWork {
	t.Helper()
	uow, err := store.Begin(context.Background())
	require.NoError(t, err)
	return uow
}

func strPtr(s string) *string { return &s }
func intPtr(v int) *int       { return &v }
func i64Ptr(v int64) *int64   { return &v }
func f64Ptr(v float64) *float64 {
	return &v
}

func TestStore_UpsertPlayerByExternalID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)

	first, err := uow.UpsertPlayer(ctx, player.Player{Name: "Bukayo Saka", ExternalID: i64Ptr(433177), BirthYear: intPtr(2001)})
	require.NoError(t, err)
	assert.True(t, first.Inserted)

	second, err := uow.UpsertPlayer(ctx, player.Player{
		Name:            "Bukayo Saka",
		ShortName:       strPtr("B. Saka"),
		ExternalID:      i64Ptr(433177),
		NationalityISO2: strPtr("eng"),
		NationalityFIFA: strPtr("ENG"),
	})
	require.NoError(t, err)
	assert.False(t, second.Inserted)
	assert.Equal(t, first.ID, second.ID)
	require.NoError(t, uow.Commit())

	var row struct {
		ShortName *string `db:"short_name"`
		FIFA      *string `db:"nationality_fifa"`
		External  *int64  `db:"transfermarkt_player_id"`
	}
	require.NoError(t, store.db.Get(&row, `SELECT short_name, nationality_fifa, transfermarkt_player_id FROM player WHERE id = ?1`, first.ID))
	require.NotNil(t, row.ShortName)
	assert.Equal(t, "B. Saka", *row.ShortName)
	require.NotNil(t, row.FIFA)
	assert.Equal(t, "ENG", *row.FIFA)
	require.NotNil(t, row.External)
	assert.Equal(t, int64(433177), *row.External)
}

func TestStore_UpsertPlayerByNameIsNullSafe(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)
	defer func() { _ = uow.Rollback() }()

	a, err := uow.UpsertPlayer(ctx, player.Player{Name: "Rodri"})
	require.NoError(t, err)
	b, err := uow.UpsertPlayer(ctx, player.Player{Name: "Rodri", Nationality: strPtr("ESP")})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.False(t, b.Inserted)

	c, err := uow.UpsertPlayer(ctx, player.Player{Name: "Rodri", ShortName: strPtr("Rodrigo H.")})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID, "different short_name is a different identity")
	assert.True(t, c.Inserted)
}

func TestStore_UpsertPlayerByNameFlagsBirthYearCollision(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)
	defer func() { _ = uow.Rollback() }()

	first, err := uow.UpsertPlayer(ctx, player.Player{Name: "Danilo", BirthYear: intPtr(1991)})
	require.NoError(t, err)

	same, err := uow.UpsertPlayer(ctx, player.Player{Name: "Danilo", BirthYear: intPtr(1991)})
	require.NoError(t, err)
	assert.False(t, same.Collision)

	other, err := uow.UpsertPlayer(ctx, player.Player{Name: "Danilo", BirthYear: intPtr(2001)})
	require.NoError(t, err)
	assert.True(t, other.Collision)
	assert.Equal(t, first.ID, other.ID, "collisions are flagged but still merged")
}

func TestStore_UpsertSeasonUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)

	p, err := uow.UpsertPlayer(ctx, player.Player{Name: "Saka"})
	require.NoError(t, err)

	id, err := uow.UpsertSeason(ctx, player.Season{
		PlayerID: p.ID,
		YearCode: "2019/20",
		Club:     strPtr("Arsenal"),
		Metrics:  map[string]float64{"matches_played": 26, "goals_scored": 1},
	})
	require.NoError(t, err)

	again, err := uow.UpsertSeason(ctx, player.Season{
		PlayerID: p.ID,
		YearCode: "2019/20",
		Club:     strPtr("Arsenal"),
		Age:      f64Ptr(18),
		Metrics:  map[string]float64{"matches_played": 26, "goals_scored": 4},
	})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	require.NoError(t, uow.Commit())

	var row struct {
		Goals float64  `db:"goals_scored"`
		Age   *float64 `db:"age"`
		Count int      `db:"n"`
	}
	require.NoError(t, store.db.Get(&row, `SELECT MAX(goals_scored) AS goals_scored, MAX(age) AS age, COUNT(1) AS n FROM player_season`))
	assert.Equal(t, 1, row.Count)
	assert.Equal(t, 4.0, row.Goals)
	require.NotNil(t, row.Age)
	assert.Equal(t, 18.0, *row.Age)
}

func TestStore_ValuationLaterValueWins(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)

	p, err := uow.UpsertPlayer(ctx, player.Player{Name: "Saka"})
	require.NoError(t, err)
	require.NoError(t, uow.UpsertValuation(ctx, player.Valuation{PlayerID: p.ID, Date: "2021-06-01", Amount: 65e6}))
	require.NoError(t, uow.UpsertValuation(ctx, player.Valuation{PlayerID: p.ID, Date: "2021-06-01", Amount: 70e6}))
	require.NoError(t, uow.Commit())

	var amounts []float64
	require.NoError(t, store.db.Select(&amounts, `SELECT amount FROM player_valuation`))
	assert.Equal(t, []float64{70e6}, amounts)
}

func TestStore_SeasonStatUpsertRefreshesValues(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)

	p, err := uow.UpsertPlayer(ctx, player.Player{Name: "Saka"})
	require.NoError(t, err)
	seasonID, err := uow.UpsertSeason(ctx, player.Season{PlayerID: p.ID, YearCode: "2020/21"})
	require.NoError(t, err)
	catID, err := uow.CategoryID(ctx, player.CategoryOffensive)
	require.NoError(t, err)

	stat := player.SeasonStat{SeasonID: seasonID, CategoryID: catID, KeyRaw: "Take-Ons Succ%", KeyNorm: strPtr("take_ons_succ%"), ValueText: strPtr("40%"), ValueNum: f64Ptr(40), Unit: strPtr("%")}
	require.NoError(t, uow.UpsertSeasonStat(ctx, stat))
	stat.ValueText = strPtr("45.5%")
	stat.ValueNum = f64Ptr(45.5)
	require.NoError(t, uow.UpsertSeasonStat(ctx, stat))
	require.NoError(t, uow.Commit())

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.SeasonStats)

	var num float64
	require.NoError(t, store.db.Get(&num, `SELECT value_num FROM player_season_stat`))
	assert.Equal(t, 45.5, num)
}

func TestStore_RollbackToSavepointForgetsNewCategory(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)

	seeded, err := uow.CategoryID(ctx, player.CategoryStandard)
	require.NoError(t, err)

	require.NoError(t, uow.Savepoint(ctx, "player_1"))
	created, err := uow.CategoryID(ctx, "passing")
	require.NoError(t, err)
	_, err = uow.UpsertPlayer(ctx, player.Player{Name: "Rolled Back"})
	require.NoError(t, err)
	require.NoError(t, uow.RollbackTo(ctx, "player_1"))
	require.NoError(t, uow.Release(ctx, "player_1"))

	again, err := uow.CategoryID(ctx, player.CategoryStandard)
	require.NoError(t, err)
	assert.Equal(t, seeded, again)

	recreated, err := uow.CategoryID(ctx, "passing")
	require.NoError(t, err)
	assert.Equal(t, created, recreated, "rowid is reused after rollback")
	require.NoError(t, uow.Commit())

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Players)
	assert.Equal(t, int64(4), counts.Categories)
}

func TestStore_InvalidSavepointName(t *testing.T) {
	store := newTestStore(t)
	uow := begin(t, store)
	defer func() { _ = uow.Rollback() }()

	assert.Error(t, uow.Savepoint(context.Background(), "x; DROP TABLE player"))
}

func TestStore_BeginPrimesSeededCategories(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	uow := begin(t, store)
	defer func() { _ = uow.Rollback() }()

	assert.Equal(t, len(player.SeededCategories), store.categories.Len())

	var want int64
	require.NoError(t, store.db.Get(&want, `SELECT id FROM stat_category WHERE code = ?1`, player.CategoryDefensive))
	cached, ok := store.categories.Get(ctx, categoryCachePrefix+player.CategoryDefensive)
	require.True(t, ok)
	assert.Equal(t, want, cached)
}

func TestStore_MutableColumnsFollowInsertModels(t *testing.T) {
	assert.Equal(t, []string{"name", "short_name", "nationality", "birth_year", "nationality_iso2", "nationality_fifa"}, playerMutableColumns)
	assert.Equal(t, []string{"key_norm", "value_num", "value_text", "unit"}, statMutableColumns)
}
