// Package sqlite persists ingested players into an embedded SQLite file.
package sqlite

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/cache"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
	qb "github.com/riskibarqy/playerstats-ingest/internal/platform/querybuilder"
)

const categoryCachePrefix = "category:"

var savepointPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

const countsQuery = `SELECT
    (SELECT COUNT(1) FROM player) AS players,
    (SELECT COUNT(1) FROM player_season) AS seasons,
    (SELECT COUNT(1) FROM player_valuation) AS valuations,
    (SELECT COUNT(1) FROM stat_category) AS categories,
    (SELECT COUNT(1) FROM player_season_stat) AS season_stats`

// Store hands out batch transactions. Category ids are cached across
// transactions and flushed on any rollback.
type Store struct {
	db         *sqlx.DB
	categories *cache.Store[int64]
	logger     *logging.Logger
}

var _ player.Store = (*Store)(nil)

func NewStore(db *sqlx.DB, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		db:         db,
		categories: cache.NewStore[int64](0),
		logger:     logger,
	}
}

func (s *Store) Begin(ctx context.Context) (player.UnitOfWork, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ingestion tx: %w", err)
	}
	uow := &unitOfWork{
		tx:         tx,
		categories: s.categories,
		logger:     s.logger,
	}
	if err := uow.primeCategories(ctx, player.SeededCategories); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return uow, nil
}

func (s *Store) Counts(ctx context.Context) (player.Counts, error) {
	var out player.Counts
	if err := s.db.GetContext(ctx, &out, countsQuery); err != nil {
		return player.Counts{}, fmt.Errorf("count rows: %w", err)
	}
	return out, nil
}

type unitOfWork struct {
	tx         *sqlx.Tx
	categories *cache.Store[int64]
	logger     *logging.Logger
}

var _ player.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) Savepoint(ctx context.Context, name string) error {
	return u.savepointExec(ctx, "SAVEPOINT", name)
}

func (u *unitOfWork) RollbackTo(ctx context.Context, name string) error {
	u.flushCategories(ctx)
	return u.savepointExec(ctx, "ROLLBACK TO SAVEPOINT", name)
}

func (u *unitOfWork) Release(ctx context.Context, name string) error {
	return u.savepointExec(ctx, "RELEASE SAVEPOINT", name)
}

func (u *unitOfWork) Commit() error {
	if err := u.tx.Commit(); err != nil {
		u.flushCategories(context.Background())
		return fmt.Errorf("commit ingestion tx: %w", err)
	}
	return nil
}

func (u *unitOfWork) Rollback() error {
	u.flushCategories(context.Background())
	if err := u.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback ingestion tx: %w", err)
	}
	return nil
}

// primeCategories loads the ids of codes in one query and caches the ones
// already stored.
func (u *unitOfWork) primeCategories(ctx context.Context, codes []string) error {
	values := make([]any, 0, len(codes))
	for _, code := range codes {
		values = append(values, code)
	}
	query, args, err := qb.Select("id", "code").
		From("stat_category").
		Where(qb.In("code", values)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build prime categories query: %w", err)
	}

	var rows []categoryRow
	if err := u.tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("prime categories: %w", err)
	}
	for _, row := range rows {
		u.categories.Set(ctx, categoryCachePrefix+row.Code, row.ID)
	}
	return nil
}

func (u *unitOfWork) savepointExec(ctx context.Context, verb, name string) error {
	if !savepointPattern.MatchString(name) {
		return fmt.Errorf("invalid savepoint name %q", name)
	}
	if _, err := u.tx.ExecContext(ctx, verb+" "+name); err != nil {
		return fmt.Errorf("%s %s: %w", verb, name, err)
	}
	return nil
}

// flushCategories drops cached category ids that may have been created by a
// rolled back statement.
func (u *unitOfWork) flushCategories(ctx context.Context) {
	u.categories.DeletePrefix(ctx, categoryCachePrefix)
}
