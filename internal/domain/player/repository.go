package player

import "context"

// Writer performs identity-preserving upserts. Every method is idempotent on
// the entity's natural key.
type Writer interface {
	UpsertPlayer(ctx context.Context, p Player) (UpsertOutcome, error)
	UpsertValuation(ctx context.Context, v Valuation) error
	UpsertSeason(ctx context.Context, s Season) (int64, error)
	CategoryID(ctx context.Context, code string) (int64, error)
	UpsertSeasonStat(ctx context.Context, s SeasonStat) error
}

// UnitOfWork is a single batch transaction with named savepoints.
type UnitOfWork interface {
	Writer
	Savepoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
	Release(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

// Store hands out units of work over the persisted player tables.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Counts(ctx context.Context) (Counts, error)
}
