// Package document decodes the joined per-player JSON files.
package document

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/playerdoc"
	"github.com/riskibarqy/playerstats-ingest/internal/platform/logging"
)

// ErrInvalidDocument marks input whose top-level shape is neither a player
// object nor a list of player objects.
var ErrInvalidDocument = crerr.New("invalid player document")

var decoder = sonic.Config{UseNumber: true}.Froze()

type Loader struct {
	workers int
	logger  *logging.Logger
}

func NewLoader(workers int, logger *logging.Logger) *Loader {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Loader{workers: workers, logger: logger}
}

// LoadFiles decodes every path concurrently and returns the documents in path
// order. Any invalid file fails the whole call.
func (l *Loader) LoadFiles(ctx context.Context, paths []string) ([]playerdoc.Document, error) {
	if len(paths) == 0 {
		return nil, crerr.Wrap(ErrInvalidDocument, "no input files")
	}
	if len(paths) == 1 {
		return l.LoadFile(ctx, paths[0])
	}

	pool, err := ants.NewPool(min(l.workers, len(paths)))
	if err != nil {
		return nil, crerr.Wrap(err, "create decode pool")
	}
	defer pool.Release()

	results := make([][]playerdoc.Document, len(paths))
	errs := make([]error, len(paths))

	var workers sync.WaitGroup
	for i, path := range paths {
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			results[i], errs[i] = l.LoadFile(ctx, path)
		}); err != nil {
			workers.Done()
			workers.Wait()
			return nil, crerr.Wrap(err, "submit decode task")
		}
	}
	workers.Wait()

	total := 0
	for i := range paths {
		if errs[i] != nil {
			return nil, errs[i]
		}
		total += len(results[i])
	}

	out := make([]playerdoc.Document, 0, total)
	for _, docs := range results {
		out = append(out, docs...)
	}
	return out, nil
}

func (l *Loader) LoadFile(ctx context.Context, path string) ([]playerdoc.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, crerr.Wrapf(err, "read input %s", path)
	}

	docs, err := Decode(data)
	if err != nil {
		return nil, crerr.Wrapf(err, "decode %s", path)
	}
	l.logger.DebugContext(ctx, "decoded input file", "path", path, "players", len(docs))
	return docs, nil
}

// Decode accepts a single player object (with "name" and "season_stats") or a
// list of player objects. A list item without a usable name still decodes,
// with an empty Name, and is rejected later for that player alone.
func Decode(data []byte) ([]playerdoc.Document, error) {
	var root any
	if err := decoder.Unmarshal(data, &root); err != nil {
		return nil, crerr.Mark(crerr.Wrap(err, "parse json"), ErrInvalidDocument)
	}

	switch v := root.(type) {
	case map[string]any:
		_, hasName := v["name"]
		_, hasSeasons := v["season_stats"]
		if !hasName || !hasSeasons {
			return nil, crerr.Wrap(ErrInvalidDocument, "player object requires name and season_stats")
		}
		return []playerdoc.Document{fromObject(v)}, nil
	case []any:
		out := make([]playerdoc.Document, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, crerr.Wrapf(ErrInvalidDocument, "list item %d is not a player object", i)
			}
			out = append(out, fromObject(obj))
		}
		return out, nil
	default:
		return nil, crerr.Wrap(ErrInvalidDocument, "top-level value must be a player object or a list of player objects")
	}
}

func fromObject(obj map[string]any) playerdoc.Document {
	var doc playerdoc.Document
	if name, ok := optString(obj["name"]); ok {
		doc.Name = *name
	}
	doc.ShortName, _ = optString(obj["short_name"])
	doc.Nationality, _ = optString(obj["nationality"])
	if year, ok := optInt(obj["birth_year"]); ok && year > 0 {
		y := int(year)
		doc.BirthYear = &y
	}
	for _, key := range []string{"external_player_id", "transfermarkt_player_id"} {
		if id, ok := optInt(obj[key]); ok && id > 0 {
			doc.ExternalID = &id
			break
		}
	}

	if seasons, ok := obj["season_stats"].(map[string]any); ok {
		doc.Seasons = make([]playerdoc.Season, 0, len(seasons))
		for yearCode, rawSeason := range seasons {
			categories, ok := rawSeason.(map[string]any)
			if !ok {
				continue
			}
			blocks := make(map[string]playerdoc.Block, len(categories))
			for code, rawBlock := range categories {
				if block, ok := rawBlock.(map[string]any); ok {
					blocks[code] = playerdoc.Block(block)
				}
			}
			doc.Seasons = append(doc.Seasons, playerdoc.Season{
				YearCode:   yearCode,
				Categories: playerdoc.OrderCategories(blocks),
			})
		}
		playerdoc.SortSeasons(doc.Seasons)
	}

	if history, ok := obj["evaluation_history"].([]any); ok {
		doc.Valuations = make([]playerdoc.ValuationPoint, 0, len(history))
		for _, rawPoint := range history {
			point, ok := rawPoint.(map[string]any)
			if !ok {
				continue
			}
			date, _ := optString(point["date"])
			vp := playerdoc.ValuationPoint{Value: point["value"]}
			if date != nil {
				vp.Date = *date
			}
			doc.Valuations = append(doc.Valuations, vp)
		}
	}

	return doc
}

func optString(raw any) (*string, bool) {
	var s string
	switch v := raw.(type) {
	case string:
		s = strings.TrimSpace(v)
	case json.Number:
		s = v.String()
	default:
		return nil, false
	}
	if s == "" {
		return nil, false
	}
	return &s, true
}

func optInt(raw any) (int64, bool) {
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
