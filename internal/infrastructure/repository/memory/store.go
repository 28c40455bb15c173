// Package memory is an in-process player store with the same upsert and
// savepoint semantics as the SQLite store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
)

type seasonKey struct {
	playerID int64
	yearCode string
}

type valuationKey struct {
	playerID int64
	date     string
}

type statKey struct {
	seasonID   int64
	categoryID int64
	keyRaw     string
}

type state struct {
	players    map[int64]player.Player
	seasons    map[seasonKey]player.Season
	valuations map[valuationKey]float64
	categories map[string]int64
	stats      map[statKey]player.SeasonStat
	nextID     int64
}

func newState() *state {
	s := &state{
		players:    make(map[int64]player.Player),
		seasons:    make(map[seasonKey]player.Season),
		valuations: make(map[valuationKey]float64),
		categories: make(map[string]int64),
		stats:      make(map[statKey]player.SeasonStat),
	}
	for _, code := range player.SeededCategories {
		s.nextID++
		s.categories[code] = s.nextID
	}
	return s
}

func (s *state) clone() *state {
	out := &state{
		players:    make(map[int64]player.Player, len(s.players)),
		seasons:    make(map[seasonKey]player.Season, len(s.seasons)),
		valuations: make(map[valuationKey]float64, len(s.valuations)),
		categories: make(map[string]int64, len(s.categories)),
		stats:      make(map[statKey]player.SeasonStat, len(s.stats)),
		nextID:     s.nextID,
	}
	for k, v := range s.players {
		out.players[k] = v
	}
	for k, v := range s.seasons {
		metrics := make(map[string]float64, len(v.Metrics))
		for col, n := range v.Metrics {
			metrics[col] = n
		}
		v.Metrics = metrics
		out.seasons[k] = v
	}
	for k, v := range s.valuations {
		out.valuations[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	for k, v := range s.stats {
		out.stats[k] = v
	}
	return out
}

// Store keeps committed state; a unit of work edits a private copy.
type Store struct {
	mu        sync.Mutex
	committed *state
}

var _ player.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{committed: newState()}
}

func (s *Store) Begin(ctx context.Context) (player.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	work := s.committed.clone()
	s.mu.Unlock()
	return &unitOfWork{store: s, work: work}, nil
}

func (s *Store) Counts(_ context.Context) (player.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return player.Counts{
		Players:     int64(len(s.committed.players)),
		Seasons:     int64(len(s.committed.seasons)),
		Valuations:  int64(len(s.committed.valuations)),
		Categories:  int64(len(s.committed.categories)),
		SeasonStats: int64(len(s.committed.stats)),
	}, nil
}

// Players returns committed players ordered by id.
func (s *Store) Players(_ context.Context) []player.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]player.Player, 0, len(s.committed.players))
	for _, p := range s.committed.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Seasons returns committed seasons of a player ordered by id.
func (s *Store) Seasons(_ context.Context, playerID int64) []player.Season {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]player.Season, 0)
	for k, season := range s.committed.seasons {
		if k.playerID == playerID {
			out = append(out, season)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stats returns committed stat rows of a season, keyed by category code.
func (s *Store) Stats(_ context.Context, seasonID int64) map[string][]player.SeasonStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	codes := make(map[int64]string, len(s.committed.categories))
	for code, id := range s.committed.categories {
		codes[id] = code
	}
	out := make(map[string][]player.SeasonStat)
	for k, stat := range s.committed.stats {
		if k.seasonID != seasonID {
			continue
		}
		code := codes[k.categoryID]
		out[code] = append(out[code], stat)
	}
	for code := range out {
		sort.Slice(out[code], func(i, j int) bool { return out[code][i].KeyRaw < out[code][j].KeyRaw })
	}
	return out
}

// Valuations returns committed date -> amount pairs of a player.
func (s *Store) Valuations(_ context.Context, playerID int64) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64)
	for k, amount := range s.committed.valuations {
		if k.playerID == playerID {
			out[k.date] = amount
		}
	}
	return out
}

type savepoint struct {
	name     string
	snapshot *state
}

type unitOfWork struct {
	store      *Store
	work       *state
	savepoints []savepoint
	done       bool
}

var _ player.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) Savepoint(_ context.Context, name string) error {
	if err := u.active(); err != nil {
		return err
	}
	u.savepoints = append(u.savepoints, savepoint{name: name, snapshot: u.work.clone()})
	return nil
}

// RollbackTo restores the named savepoint and keeps it on the stack.
func (u *unitOfWork) RollbackTo(_ context.Context, name string) error {
	if err := u.active(); err != nil {
		return err
	}
	idx := u.findSavepoint(name)
	if idx < 0 {
		return fmt.Errorf("no such savepoint: %s", name)
	}
	u.work = u.savepoints[idx].snapshot.clone()
	u.savepoints = u.savepoints[:idx+1]
	return nil
}

func (u *unitOfWork) Release(_ context.Context, name string) error {
	if err := u.active(); err != nil {
		return err
	}
	idx := u.findSavepoint(name)
	if idx < 0 {
		return fmt.Errorf("no such savepoint: %s", name)
	}
	u.savepoints = u.savepoints[:idx]
	return nil
}

func (u *unitOfWork) Commit() error {
	if err := u.active(); err != nil {
		return err
	}
	u.store.mu.Lock()
	u.store.committed = u.work
	u.store.mu.Unlock()
	u.done = true
	return nil
}

func (u *unitOfWork) Rollback() error {
	if err := u.active(); err != nil {
		return err
	}
	u.done = true
	return nil
}

func (u *unitOfWork) active() error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	return nil
}

func (u *unitOfWork) findSavepoint(name string) int {
	for i := len(u.savepoints) - 1; i >= 0; i-- {
		if strings.EqualFold(u.savepoints[i].name, name) {
			return i
		}
	}
	return -1
}

func (u *unitOfWork) allocID() int64 {
	u.work.nextID++
	return u.work.nextID
}
