package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
)

func (u *unitOfWork) UpsertPlayer(_ context.Context, p player.Player) (player.UpsertOutcome, error) {
	if err := u.active(); err != nil {
		return player.UpsertOutcome{}, err
	}
	if err := p.Validate(); err != nil {
		return player.UpsertOutcome{}, err
	}

	existing, found := u.matchPlayer(p)
	if !found {
		p.ID = u.allocID()
		u.work.players[p.ID] = p
		return player.UpsertOutcome{ID: p.ID, Inserted: true}, nil
	}

	outcome := player.UpsertOutcome{ID: existing.ID}
	updated := existing
	updated.Nationality = p.Nationality
	updated.BirthYear = p.BirthYear
	updated.NationalityISO2 = p.NationalityISO2
	updated.NationalityFIFA = p.NationalityFIFA
	if p.ExternalID != nil {
		updated.Name = p.Name
		updated.ShortName = p.ShortName
	} else {
		outcome.Collision = existing.BirthYear != nil && p.BirthYear != nil && *existing.BirthYear != *p.BirthYear
	}
	u.work.players[existing.ID] = updated
	return outcome, nil
}

// matchPlayer returns the lowest id row matching the natural key.
func (u *unitOfWork) matchPlayer(p player.Player) (player.Player, bool) {
	var (
		match player.Player
		found bool
	)
	for _, candidate := range u.work.players {
		ok := false
		if p.ExternalID != nil {
			ok = candidate.ExternalID != nil && *candidate.ExternalID == *p.ExternalID
		} else {
			ok = candidate.Name == p.Name && equalOptional(candidate.ShortName, p.ShortName)
		}
		if ok && (!found || candidate.ID < match.ID) {
			match, found = candidate, true
		}
	}
	return match, found
}

func (u *unitOfWork) UpsertValuation(_ context.Context, v player.Valuation) error {
	if err := u.active(); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return err
	}
	if _, ok := u.work.players[v.PlayerID]; !ok {
		return fmt.Errorf("valuation references unknown player %d", v.PlayerID)
	}
	u.work.valuations[valuationKey{playerID: v.PlayerID, date: v.Date}] = v.Amount
	return nil
}

func (u *unitOfWork) UpsertSeason(_ context.Context, s player.Season) (int64, error) {
	if err := u.active(); err != nil {
		return 0, err
	}
	if err := s.Validate(); err != nil {
		return 0, err
	}
	if _, ok := u.work.players[s.PlayerID]; !ok {
		return 0, fmt.Errorf("season references unknown player %d", s.PlayerID)
	}

	key := seasonKey{playerID: s.PlayerID, yearCode: s.YearCode}
	if existing, ok := u.work.seasons[key]; ok {
		s.ID = existing.ID
	} else {
		s.ID = u.allocID()
	}
	metrics := make(map[string]float64, len(s.Metrics))
	for col, n := range s.Metrics {
		metrics[col] = n
	}
	s.Metrics = metrics
	u.work.seasons[key] = s
	return s.ID, nil
}

func (u *unitOfWork) CategoryID(_ context.Context, code string) (int64, error) {
	if err := u.active(); err != nil {
		return 0, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, fmt.Errorf("category code is required")
	}
	if id, ok := u.work.categories[code]; ok {
		return id, nil
	}
	id := u.allocID()
	u.work.categories[code] = id
	return id, nil
}

func (u *unitOfWork) UpsertSeasonStat(_ context.Context, s player.SeasonStat) error {
	if err := u.active(); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	u.work.stats[statKey{seasonID: s.SeasonID, categoryID: s.CategoryID, keyRaw: s.KeyRaw}] = s
	return nil
}

func equalOptional[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
