package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
	qb "github.com/riskibarqy/playerstats-ingest/internal/platform/querybuilder"
)

var playerMutableColumns = mustModelColumns(playerInsertModel{}, "transfermarkt_player_id")

// UpsertPlayer matches on the external id when present, otherwise on
// (name, short_name) with NULL-safe short_name equality.
func (u *unitOfWork) UpsertPlayer(ctx context.Context, p player.Player) (player.UpsertOutcome, error) {
	if err := p.Validate(); err != nil {
		return player.UpsertOutcome{}, err
	}
	if p.ExternalID != nil {
		return u.upsertPlayerByExternalID(ctx, p)
	}
	return u.upsertPlayerByName(ctx, p)
}

func (u *unitOfWork) upsertPlayerByExternalID(ctx context.Context, p player.Player) (player.UpsertOutcome, error) {
	byExternalID := []qb.Condition{qb.Eq("transfermarkt_player_id", *p.ExternalID)}
	_, found, err := u.findPlayer(ctx, byExternalID)
	if err != nil {
		return player.UpsertOutcome{}, err
	}

	query, args, err := qb.InsertModel("player", playerInsertModelFrom(p), `ON CONFLICT(transfermarkt_player_id) DO UPDATE SET
    `+qb.ExcludedAssignments(playerMutableColumns...))
	if err != nil {
		return player.UpsertOutcome{}, fmt.Errorf("build upsert player query: %w", err)
	}
	if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
		return player.UpsertOutcome{}, fmt.Errorf("upsert player %d: %w", *p.ExternalID, err)
	}

	row, ok, err := u.findPlayer(ctx, byExternalID)
	if err != nil {
		return player.UpsertOutcome{}, err
	}
	if !ok {
		return player.UpsertOutcome{}, fmt.Errorf("player %d missing after upsert", *p.ExternalID)
	}
	return player.UpsertOutcome{ID: row.ID, Inserted: !found}, nil
}

func (u *unitOfWork) upsertPlayerByName(ctx context.Context, p player.Player) (player.UpsertOutcome, error) {
	shortName := qb.Is("short_name", p.ShortName)
	if p.ShortName == nil {
		shortName = qb.IsNull("short_name")
	}
	byName := []qb.Condition{qb.Eq("name", p.Name), shortName}
	existing, found, err := u.findPlayer(ctx, byName)
	if err != nil {
		return player.UpsertOutcome{}, err
	}

	outcome := player.UpsertOutcome{Inserted: !found}
	if found {
		outcome.Collision = existing.BirthYear.Valid && p.BirthYear != nil && existing.BirthYear.Int64 != int64(*p.BirthYear)

		query, args, err := qb.Update("player").
			Set("nationality", p.Nationality).
			Set("birth_year", p.BirthYear).
			Set("nationality_iso2", p.NationalityISO2).
			Set("nationality_fifa", p.NationalityFIFA).
			Where(qb.Eq("id", existing.ID)).
			ToSQL()
		if err != nil {
			return player.UpsertOutcome{}, fmt.Errorf("build update player query: %w", err)
		}
		if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
			return player.UpsertOutcome{}, fmt.Errorf("update player %d: %w", existing.ID, err)
		}
	} else {
		model := playerInsertModelFrom(p)
		query, args, err := qb.InsertModel("player", model, "")
		if err != nil {
			return player.UpsertOutcome{}, fmt.Errorf("build insert player query: %w", err)
		}
		if _, err := u.tx.ExecContext(ctx, query, args...); err != nil {
			return player.UpsertOutcome{}, fmt.Errorf("insert player %q: %w", p.Name, err)
		}
	}

	row, ok, err := u.findPlayer(ctx, byName)
	if err != nil {
		return player.UpsertOutcome{}, err
	}
	if !ok {
		return player.UpsertOutcome{}, fmt.Errorf("player %q missing after upsert", p.Name)
	}
	outcome.ID = row.ID
	return outcome, nil
}

func (u *unitOfWork) findPlayer(ctx context.Context, where []qb.Condition) (playerMatchRow, bool, error) {
	query, args, err := qb.Select("id", "birth_year").
		From("player").
		Where(where...).
		OrderBy("id").
		Limit(1).
		ToSQL()
	if err != nil {
		return playerMatchRow{}, false, fmt.Errorf("build find player query: %w", err)
	}

	var row playerMatchRow
	if err := u.tx.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return playerMatchRow{}, false, nil
		}
		return playerMatchRow{}, false, fmt.Errorf("find player: %w", err)
	}
	return row, true, nil
}

func playerInsertModelFrom(p player.Player) playerInsertModel {
	return playerInsertModel{
		Name:            p.Name,
		ShortName:       p.ShortName,
		Nationality:     p.Nationality,
		BirthYear:       p.BirthYear,
		ExternalID:      p.ExternalID,
		NationalityISO2: p.NationalityISO2,
		NationalityFIFA: p.NationalityFIFA,
	}
}
