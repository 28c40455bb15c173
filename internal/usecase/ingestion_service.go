package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
	"github.com/riskibarqy/playerstats-ingest/internal/domain/playerdoc"
	"github.com/riskibarqy/playerstats-ingest/internal/domain/playerstats"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

// IngestionService merges player documents into the store. Planning is pure
// and may run in parallel; writes are sequential and happen inside a single
// batch transaction with one savepoint per player.
type IngestionService struct {
	store       player.Store
	resolver    *playerstats.Resolver
	logger      *logging.Logger
	planWorkers int
	now         func() time.Time
	newRunID    func() string
}

func NewIngestionService(store player.Store, resolver *playerstats.Resolver, logger *logging.Logger, planWorkers int) *IngestionService {
	if resolver == nil {
		resolver = playerstats.NewResolver(playerstats.DefaultLabelMap())
	}
	if logger == nil {
		logger = logging.Default()
	}
	if planWorkers <= 0 {
		planWorkers = 1
	}
	return &IngestionService{
		store:       store,
		resolver:    resolver,
		logger:      logger,
		planWorkers: planWorkers,
		now:         time.Now,
		newRunID:    func() string { return uuid.NewString() },
	}
}

// PlayerPlan is everything written for one document, without store ids.
type PlayerPlan struct {
	Player            player.Player
	Valuations        []player.Valuation
	Seasons           []SeasonPlan
	SkippedValuations int
}

type SeasonPlan struct {
	Season player.Season
	Stats  []StatPlan
}

type StatPlan struct {
	Category string
	Stat     player.SeasonStat
}

// PlayerResult reports the rows written for one player.
type PlayerResult struct {
	PlayerID   int64
	Inserted   bool
	Collision  bool
	Seasons    int
	Stats      int
	Valuations int
}

type Failure struct {
	Index int
	Name  string
	Err   string
}

type Result struct {
	RunID      string
	Imported   int
	Failed     int
	Seasons    int
	Stats      int
	Valuations int
	Collisions int
	Failures   []Failure
	Duration   time.Duration
}

// Plan resolves identity, valuations, season meta and stat rows of doc.
func (s *IngestionService) Plan(doc playerdoc.Document) PlayerPlan {
	seasons := append([]playerdoc.Season(nil), doc.Seasons...)
	playerdoc.SortSeasons(seasons)

	p := player.Player{
		Name:        strings.TrimSpace(doc.Name),
		ShortName:   doc.ShortName,
		Nationality: doc.Nationality,
		BirthYear:   doc.BirthYear,
		ExternalID:  doc.ExternalID,
	}
	if p.BirthYear == nil {
		if year, ok := s.resolver.BirthYear(seasons); ok {
			p.BirthYear = &year
		}
	}
	if nat, ok := s.resolver.Nationality(seasons); ok {
		fifa := nat.FIFA
		p.NationalityISO2 = nat.ISO2
		p.NationalityFIFA = &fifa
		if p.Nationality == nil {
			p.Nationality = &fifa
		}
	}

	plan := PlayerPlan{Player: p}
	for _, point := range doc.Valuations {
		date := strings.TrimSpace(point.Date)
		if date == "" || point.Value == nil {
			plan.SkippedValuations++
			continue
		}
		value := playerstats.ParseValue(point.Value)
		if value.Num == nil {
			plan.SkippedValuations++
			continue
		}
		plan.Valuations = append(plan.Valuations, player.Valuation{Date: date, Amount: *value.Num})
	}

	labels := s.resolver.Labels()
	for _, season := range seasons {
		meta := s.resolver.SeasonMeta(season)
		sp := SeasonPlan{Season: player.Season{
			YearCode: season.YearCode,
			Age:      meta.Age,
			Position: meta.Position,
			Club:     meta.Club,
			Metrics:  meta.Metrics,
		}}
		for _, category := range season.Categories {
			for _, key := range category.Block.SortedKeys() {
				if labels.Skip(key) {
					continue
				}
				value := playerstats.ParseValue(category.Block[key])
				stat := player.SeasonStat{
					KeyRaw:    key,
					ValueNum:  value.Num,
					ValueText: value.Text,
					Unit:      value.Unit,
				}
				if norm, ok := playerstats.NormalizeKey(key); ok {
					stat.KeyNorm = &norm
				}
				sp.Stats = append(sp.Stats, StatPlan{Category: category.Code, Stat: stat})
			}
		}
		plan.Seasons = append(plan.Seasons, sp)
	}
	return plan
}

// ImportPlayer plans and writes a single document through w.
func (s *IngestionService) ImportPlayer(ctx context.Context, w player.Writer, doc playerdoc.Document) (PlayerResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestionService.ImportPlayer")
	defer span.End()

	if w == nil {
		return PlayerResult{}, fmt.Errorf("%w: writer is required", ErrInvalidInput)
	}
	return s.writePlan(ctx, w, s.Plan(doc))
}

func (s *IngestionService) writePlan(ctx context.Context, w player.Writer, plan PlayerPlan) (PlayerResult, error) {
	if strings.TrimSpace(plan.Player.Name) == "" {
		return PlayerResult{}, fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}

	outcome, err := w.UpsertPlayer(ctx, plan.Player)
	if err != nil {
		return PlayerResult{}, fmt.Errorf("upsert player: %w", err)
	}
	result := PlayerResult{PlayerID: outcome.ID, Inserted: outcome.Inserted, Collision: outcome.Collision}

	if plan.SkippedValuations > 0 {
		s.logger.DebugContext(ctx, "valuation entries skipped",
			"player", plan.Player.Name,
			"skipped", plan.SkippedValuations,
		)
	}
	for _, v := range plan.Valuations {
		v.PlayerID = outcome.ID
		if err := w.UpsertValuation(ctx, v); err != nil {
			return result, fmt.Errorf("upsert valuation %s: %w", v.Date, err)
		}
		result.Valuations++
	}

	categoryIDs := make(map[string]int64, len(player.SeededCategories))
	for _, sp := range plan.Seasons {
		season := sp.Season
		season.PlayerID = outcome.ID
		seasonID, err := w.UpsertSeason(ctx, season)
		if err != nil {
			return result, fmt.Errorf("upsert season %s: %w", season.YearCode, err)
		}
		result.Seasons++

		for _, st := range sp.Stats {
			catID, ok := categoryIDs[st.Category]
			if !ok {
				catID, err = w.CategoryID(ctx, st.Category)
				if err != nil {
					return result, fmt.Errorf("resolve category %s: %w", st.Category, err)
				}
				categoryIDs[st.Category] = catID
			}

			stat := st.Stat
			stat.SeasonID = seasonID
			stat.CategoryID = catID
			if err := w.UpsertSeasonStat(ctx, stat); err != nil {
				return result, fmt.Errorf("upsert stat %s/%s %q: %w", season.YearCode, st.Category, stat.KeyRaw, err)
			}
			result.Stats++
		}
	}
	return result, nil
}

// ImportBatch writes every document in one transaction. A failing player is
// rolled back to its savepoint and counted; the batch goes on. Store failures
// outside a player, and context cancellation, abort the whole batch.
func (s *IngestionService) ImportBatch(ctx context.Context, docs []playerdoc.Document) (Result, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.IngestionService.ImportBatch")
	defer span.End()

	start := s.now()
	result := Result{RunID: s.newRunID()}
	logger := s.logger.With("run_id", result.RunID)
	span.SetAttributes(
		attribute.String("ingest.run_id", result.RunID),
		attribute.Int("ingest.documents", len(docs)),
	)

	plans := iter.Mapper[playerdoc.Document, PlayerPlan]{MaxGoroutines: s.planWorkers}.
		Map(docs, func(doc *playerdoc.Document) PlayerPlan {
			return s.Plan(*doc)
		})

	uow, err := s.store.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("%w: begin batch: %v", ErrBatchAborted, err)
	}
	finished := false
	defer func() {
		if !finished {
			if err := uow.Rollback(); err != nil {
				logger.WarnContext(ctx, "rollback ingestion batch failed", "error", err)
			}
		}
	}()

	for i, plan := range plans {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrBatchAborted, err)
		}

		savepoint := fmt.Sprintf("player_%d", i+1)
		if err := uow.Savepoint(ctx, savepoint); err != nil {
			return result, fmt.Errorf("%w: %v", ErrBatchAborted, err)
		}

		pr, err := s.writePlan(ctx, uow, plan)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, fmt.Errorf("%w: %w", ErrBatchAborted, ctxErr)
			}
			if rbErr := uow.RollbackTo(ctx, savepoint); rbErr != nil {
				return result, fmt.Errorf("%w: %v", ErrBatchAborted, rbErr)
			}
			if relErr := uow.Release(ctx, savepoint); relErr != nil {
				return result, fmt.Errorf("%w: %v", ErrBatchAborted, relErr)
			}
			result.Failed++
			result.Failures = append(result.Failures, Failure{Index: i, Name: plan.Player.Name, Err: err.Error()})
			logger.WarnContext(ctx, "player import failed",
				"index", i,
				"player", plan.Player.Name,
				"error", err,
			)
			continue
		}
		if err := uow.Release(ctx, savepoint); err != nil {
			return result, fmt.Errorf("%w: %v", ErrBatchAborted, err)
		}

		result.Imported++
		result.Seasons += pr.Seasons
		result.Stats += pr.Stats
		result.Valuations += pr.Valuations
		if pr.Collision {
			result.Collisions++
			logger.WarnContext(ctx, "player merged on name despite birth year mismatch",
				"player_id", pr.PlayerID,
				"player", plan.Player.Name,
				"short_name", plan.Player.ShortName,
				"error", player.ErrIdentityCollision,
			)
		}
	}

	if err := uow.Commit(); err != nil {
		return result, fmt.Errorf("%w: %v", ErrBatchAborted, err)
	}
	finished = true
	result.Duration = s.now().Sub(start)

	span.SetAttributes(
		attribute.Int("ingest.imported", result.Imported),
		attribute.Int("ingest.failed", result.Failed),
	)
	logger.InfoContext(ctx, "ingestion batch committed",
		"imported", result.Imported,
		"failed", result.Failed,
		"seasons", result.Seasons,
		"stats", result.Stats,
		"valuations", result.Valuations,
		"collisions", result.Collisions,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// IsAborted reports whether err ended a batch without committing it.
func IsAborted(err error) bool {
	return errors.Is(err, ErrBatchAborted)
}
