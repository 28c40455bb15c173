package sqlite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
	qb "github.com/riskibarqy/playerstats-ingest/internal/platform/querybuilder"
)

// ErrSchema marks a failed bootstrap or patch. Ingestion must not run on a
// partial schema.
var ErrSchema = crerr.New("schema bootstrap failed")

type columnDef struct {
	name    string
	sqlType string
}

type indexDef struct {
	name    string
	table   string
	columns string
	unique  bool
}

var requiredTables = []string{"player", "player_season", "player_valuation", "stat_category", "player_season_stat"}

// requiredColumns are the columns the engine writes. Any of them missing from
// an existing table is added with ALTER TABLE.
var requiredColumns = map[string][]columnDef{
	"player": {
		{name: "name", sqlType: "TEXT"},
		{name: "nationality", sqlType: "TEXT"},
		{name: "birth_year", sqlType: "INTEGER"},
		{name: "transfermarkt_player_id", sqlType: "INTEGER"},
		{name: "short_name", sqlType: "TEXT"},
		{name: "nationality_iso2", sqlType: "TEXT"},
		{name: "nationality_fifa", sqlType: "TEXT"},
	},
	"player_season": seasonColumnDefs(),
	"player_valuation": {
		{name: "date", sqlType: "TEXT"},
		{name: "amount", sqlType: "REAL"},
	},
	"player_season_stat": {
		{name: "key_norm", sqlType: "TEXT"},
		{name: "value_num", sqlType: "REAL"},
		{name: "value_text", sqlType: "TEXT"},
		{name: "unit", sqlType: "TEXT"},
	},
}

var requiredIndexes = []indexDef{
	{name: "ux_player_season_player_year", table: "player_season", columns: "player_id, year_code", unique: true},
	{name: "ux_val_player_date", table: "player_valuation", columns: "player_id, date", unique: true},
	{name: "ix_player_season_player", table: "player_season", columns: "player_id"},
}

// externalIDIndex backs ON CONFLICT(transfermarkt_player_id) when the column
// had to be patched in, since ADD COLUMN cannot carry UNIQUE.
var externalIDIndex = indexDef{name: "ux_player_transfermarkt_id", table: "player", columns: "transfermarkt_player_id", unique: true}

func seasonColumnDefs() []columnDef {
	out := []columnDef{
		{name: "year_code", sqlType: "TEXT"},
		{name: "age", sqlType: "REAL"},
		{name: "position", sqlType: "TEXT"},
		{name: "club", sqlType: "TEXT"},
	}
	for _, col := range player.SeasonMetricColumns {
		out = append(out, columnDef{name: col, sqlType: "REAL"})
	}
	return out
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SchemaReport describes what a bootstrap changed.
type SchemaReport struct {
	MigrationVersion uint
	MigrationsRan    bool
	TablesCreated    []string
	ColumnsAdded     []string
	IndexesCreated   []string
	CategoriesSeeded int64
}

func (r SchemaReport) Changed() bool {
	return r.MigrationsRan || len(r.TablesCreated) > 0 || len(r.ColumnsAdded) > 0 ||
		len(r.IndexesCreated) > 0 || r.CategoriesSeeded > 0
}

type SchemaManager struct {
	db     *sqlx.DB
	logger *logging.Logger
}

func NewSchemaManager(db *sqlx.DB, logger *logging.Logger) *SchemaManager {
	if logger == nil {
		logger = logging.Default()
	}
	return &SchemaManager{db: db, logger: logger}
}

// Ensure creates missing tables through the embedded migrations, then patches
// columns, indexes and category seeds. The bootstrap commits on its own.
func (m *SchemaManager) Ensure(ctx context.Context) (SchemaReport, error) {
	before, err := m.tableSet(ctx)
	if err != nil {
		return SchemaReport{}, crerr.Mark(err, ErrSchema)
	}

	migrator, err := NewMigrator(m.db)
	if err != nil {
		return SchemaReport{}, crerr.Mark(err, ErrSchema)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			m.logger.WarnContext(ctx, "close migration source failed", "error", err)
		}
	}()

	ran, err := migrator.Up()
	if err != nil {
		return SchemaReport{}, crerr.Mark(err, ErrSchema)
	}
	version, _, err := migrator.Version()
	if err != nil {
		return SchemaReport{}, crerr.Mark(err, ErrSchema)
	}

	report, err := m.Patch(ctx)
	if err != nil {
		return SchemaReport{}, err
	}
	report.MigrationVersion = version
	report.MigrationsRan = ran
	for _, table := range requiredTables {
		if _, ok := before[table]; !ok {
			report.TablesCreated = append(report.TablesCreated, table)
		}
	}

	m.logger.InfoContext(ctx, "schema ensured",
		"migration_version", report.MigrationVersion,
		"tables_created", report.TablesCreated,
		"columns_added", report.ColumnsAdded,
		"indexes_created", report.IndexesCreated,
		"categories_seeded", report.CategoriesSeeded,
	)
	return report, nil
}

// Patch adds missing columns and indexes and seeds the known categories in a
// single transaction. Tables must exist.
func (m *SchemaManager) Patch(ctx context.Context) (SchemaReport, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return SchemaReport{}, crerr.Mark(fmt.Errorf("begin tx schema patch: %w", err), ErrSchema)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var report SchemaReport
	for _, table := range requiredTables {
		defs, ok := requiredColumns[table]
		if !ok {
			continue
		}
		existing, err := columnSet(ctx, tx, table)
		if err != nil {
			return SchemaReport{}, crerr.Mark(err, ErrSchema)
		}
		if len(existing) == 0 {
			return SchemaReport{}, crerr.Mark(fmt.Errorf("table %s does not exist", table), ErrSchema)
		}
		for _, def := range defs {
			if _, ok := existing[def.name]; ok {
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, def.name, def.sqlType)
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return SchemaReport{}, crerr.Mark(fmt.Errorf("add column %s.%s: %w", table, def.name, err), ErrSchema)
			}
			report.ColumnsAdded = append(report.ColumnsAdded, table+"."+def.name)
		}
	}

	indexes := append([]indexDef(nil), requiredIndexes...)
	for _, added := range report.ColumnsAdded {
		if added == "player.transfermarkt_player_id" {
			indexes = append(indexes, externalIDIndex)
		}
	}
	existingIndexes, err := indexSet(ctx, tx)
	if err != nil {
		return SchemaReport{}, crerr.Mark(err, ErrSchema)
	}
	for _, idx := range indexes {
		if _, ok := existingIndexes[idx.name]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, idx.createSQL()); err != nil {
			return SchemaReport{}, crerr.Mark(fmt.Errorf("create index %s: %w", idx.name, err), ErrSchema)
		}
		report.IndexesCreated = append(report.IndexesCreated, idx.name)
	}

	seed := qb.InsertOrIgnoreInto("stat_category").Columns("code")
	for _, code := range player.SeededCategories {
		seed.Values(code)
	}
	query, args, err := seed.ToSQL()
	if err != nil {
		return SchemaReport{}, crerr.Mark(fmt.Errorf("build seed categories query: %w", err), ErrSchema)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return SchemaReport{}, crerr.Mark(fmt.Errorf("seed categories: %w", err), ErrSchema)
	}
	if n, err := res.RowsAffected(); err == nil {
		report.CategoriesSeeded = n
	}

	if err := tx.Commit(); err != nil {
		return SchemaReport{}, crerr.Mark(fmt.Errorf("commit schema patch: %w", err), ErrSchema)
	}
	return report, nil
}

func (d indexDef) createSQL() string {
	verb := "CREATE INDEX"
	if d.unique {
		verb = "CREATE UNIQUE INDEX"
	}
	return fmt.Sprintf("%s IF NOT EXISTS %s ON %s(%s)", verb, d.name, d.table, d.columns)
}

func (m *SchemaManager) tableSet(ctx context.Context) (map[string]struct{}, error) {
	return masterNames(ctx, m.db, "table")
}

func indexSet(ctx context.Context, q sqlx.QueryerContext) (map[string]struct{}, error) {
	return masterNames(ctx, q, "index")
}

func masterNames(ctx context.Context, q sqlx.QueryerContext, kind string) (map[string]struct{}, error) {
	query, args, err := qb.Select("name").
		From("sqlite_master").
		Where(qb.Eq("type", kind), qb.Expr("name NOT LIKE ?", "sqlite_%")).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list %s query: %w", kind, err)
	}
	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, query, args...); err != nil {
		return nil, fmt.Errorf("list %s names: %w", kind, err)
	}
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[name] = struct{}{}
	}
	return out, nil
}

// columnSet returns the column names of table; empty when the table is absent.
func columnSet(ctx context.Context, q sqlx.QueryerContext, table string) (map[string]struct{}, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	var names []string
	if err := sqlx.SelectContext(ctx, q, &names, "SELECT name FROM pragma_table_info(?1)", table); err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	out := make(map[string]struct{}, len(names))
	for _, name := range names {
		out[strings.ToLower(name)] = struct{}{}
	}
	return out, nil
}
