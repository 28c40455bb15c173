package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
	qb "github.com/riskibarqy/playerstats-ingest/internal/platform/querybuilder"
)

var seasonMutableColumns = append([]string{"age", "position", "club"}, player.SeasonMetricColumns...)

var statMutableColumns = mustModelColumns(seasonStatInsertModel{}, "player_season_id", "category_id", "key_raw")

func (u *unitOfWork) UpsertValuation(ctx context.Context, v player.Valuation) error {
	if err := v.Validate(); err != nil {
		return err
	}

	query, args, err := qb.InsertModel("player_valuation", valuationInsertModel{
		PlayerID: v.PlayerID,
		Date:     v.Date,
		Amount:   v.Amount,
	}, `ON CONFLICT(player_id, date) DO UPDATE SET
    amount = excluded.amount`)
	if err != nil {
		return fmt.Errorf("build upsert valuation query: %w", err)
	}
	if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert valuation player=%d date=%s: %w", v.PlayerID, v.Date, err)
	}
	return nil
}

func (u *unitOfWork) UpsertSeason(ctx context.Context, s player.Season) (int64, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}

	values := []any{s.PlayerID, s.YearCode, s.Age, s.Position, s.Club}
	for _, col := range player.SeasonMetricColumns {
		if v, ok := s.Metrics[col]; ok {
			values = append(values, v)
			continue
		}
		values = append(values, nil)
	}

	query, args, err := qb.InsertInto("player_season").
		Columns(append([]string{"player_id", "year_code"}, seasonMutableColumns...)...).
		Values(values...).
		Suffix(`ON CONFLICT(player_id, year_code) DO UPDATE SET
    ` + qb.ExcludedAssignments(seasonMutableColumns...)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build upsert season query: %w", err)
	}
	if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("upsert season player=%d year=%s: %w", s.PlayerID, s.YearCode, err)
	}

	query, args, err = qb.Select("id").
		From("player_season").
		Where(qb.Eq("player_id", s.PlayerID), qb.Eq("year_code", s.YearCode)).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build select season id query: %w", err)
	}
	var id int64
	if err := u.tx.GetContext(ctx, &id, query, args...); err != nil {
		return 0, fmt.Errorf("select season id player=%d year=%s: %w", s.PlayerID, s.YearCode, err)
	}
	return id, nil
}

// CategoryID returns the id of code, inserting the category when unseen.
func (u *unitOfWork) CategoryID(ctx context.Context, code string) (int64, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, fmt.Errorf("category code is required")
	}
	return u.categories.GetOrLoad(ctx, categoryCachePrefix+code, func(ctx context.Context) (int64, error) {
		return u.lookupOrInsertCategory(ctx, code)
	})
}

func (u *unitOfWork) lookupOrInsertCategory(ctx context.Context, code string) (int64, error) {
	query, args, err := qb.Select("id").From("stat_category").Where(qb.Eq("code", code)).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build select category query: %w", err)
	}

	var id int64
	err = u.tx.GetContext(ctx, &id, query, args...)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("select category %s: %w", code, err)
	}

	insert, insertArgs, err := qb.InsertModel("stat_category", categoryInsertModel{Code: code}, "")
	if err != nil {
		return 0, fmt.Errorf("build insert category query: %w", err)
	}
	res, err := u.tx.ExecContext(ctx, insert, insertArgs...)
	if err != nil {
		return 0, fmt.Errorf("insert category %s: %w", code, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read category id %s: %w", code, err)
	}
	u.logger.InfoContext(ctx, "stat category created", "code", code, "id", id)
	return id, nil
}

func (u *unitOfWork) UpsertSeasonStat(ctx context.Context, s player.SeasonStat) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query, args, err := qb.InsertModel("player_season_stat", seasonStatInsertModel{
		SeasonID:   s.SeasonID,
		CategoryID: s.CategoryID,
		KeyRaw:     s.KeyRaw,
		KeyNorm:    s.KeyNorm,
		ValueNum:   s.ValueNum,
		ValueText:  s.ValueText,
		Unit:       s.Unit,
	}, `ON CONFLICT(player_season_id, category_id, key_raw) DO UPDATE SET
    `+qb.ExcludedAssignments(statMutableColumns...))
	if err != nil {
		return fmt.Errorf("build upsert season stat query: %w", err)
	}
	if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert season stat season=%d key=%q: %w", s.SeasonID, s.KeyRaw, err)
	}
	return nil
}
