package playerstats

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/playerdoc"
)

// SeasonMeta is the per-season data stored on the player_season row.
type SeasonMeta struct {
	Position *string
	Club     *string
	Age      *float64
	Metrics  map[string]float64
}

// Nationality is a split nation label such as "eng ENG".
type Nationality struct {
	ISO2 *string
	FIFA string
}

// Resolver derives player level attributes from ordered category blocks.
// For every attribute the first block yielding a usable value wins.
type Resolver struct {
	labels LabelMap
}

func NewResolver(labels LabelMap) *Resolver {
	return &Resolver{labels: labels}
}

func (r *Resolver) Labels() LabelMap {
	return r.labels
}

// SeasonMeta resolves position, club and age over standard, offensive and
// defensive blocks, and the fixed numeric columns from the standard block.
func (r *Resolver) SeasonMeta(season playerdoc.Season) SeasonMeta {
	return r.ResolveSeasonMeta(season.ResolutionOrder())
}

// ResolveSeasonMeta works on an explicit block order. The first block is the
// source of the numeric season columns.
func (r *Resolver) ResolveSeasonMeta(blocks []playerdoc.Block) SeasonMeta {
	meta := SeasonMeta{Metrics: map[string]float64{}}
	if s, ok := firstResolved(blocks, r.labels.Fields.Position, textOf); ok {
		meta.Position = &s
	}
	if s, ok := firstResolved(blocks, r.labels.Fields.Club, textOf); ok {
		meta.Club = &s
	}
	if age, ok := firstResolved(blocks, r.labels.Fields.Age, ageOf); ok {
		meta.Age = &age
	}

	if len(blocks) > 0 && blocks[0] != nil {
		standard := blocks[0]
		for label, col := range r.labels.SeasonColumns {
			raw, ok := standard.Get(label)
			if !ok {
				continue
			}
			if v := ParseValue(raw); v.Num != nil {
				meta.Metrics[col] = *v.Num
			}
		}
	}
	return meta
}

// BirthYear searches every category block of every season, in order, for the
// first parseable year.
func (r *Resolver) BirthYear(seasons []playerdoc.Season) (int, bool) {
	for _, season := range seasons {
		if year, ok := firstResolved(season.ResolutionOrder(), r.labels.Fields.Born, yearOf); ok {
			return year, true
		}
	}
	return 0, false
}

// Nationality returns the first nation label found across seasons.
func (r *Resolver) Nationality(seasons []playerdoc.Season) (Nationality, bool) {
	for _, season := range seasons {
		if n, ok := firstResolved(season.ResolutionOrder(), r.labels.Fields.Nation, nationOf); ok {
			return n, true
		}
	}
	return Nationality{}, false
}

// SplitNation splits "ie IRL" into ("ie", "IRL"); a single token is the FIFA
// code.
func SplitNation(raw string) (Nationality, bool) {
	parts := strings.Fields(raw)
	switch len(parts) {
	case 0:
		return Nationality{}, false
	case 1:
		return Nationality{FIFA: parts[0]}, true
	default:
		iso2 := parts[0]
		return Nationality{ISO2: &iso2, FIFA: parts[1]}, true
	}
}

// firstResolved walks blocks in order; inside a block only the first label
// carrying a non-blank value is considered. A value that fails to convert
// moves the search on to the next block.
func firstResolved[T any](blocks []playerdoc.Block, labels []string, convert func(any) (T, bool)) (T, bool) {
	var zero T
	for _, block := range blocks {
		raw, ok := firstPresent(block, labels)
		if !ok {
			continue
		}
		if v, ok := convert(raw); ok {
			return v, true
		}
	}
	return zero, false
}

func firstPresent(block playerdoc.Block, labels []string) (any, bool) {
	for _, label := range labels {
		raw, ok := block.Get(label)
		if !ok || raw == nil {
			continue
		}
		if s, isString := raw.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return raw, true
	}
	return nil, false
}

func textOf(raw any) (string, bool) {
	v := ParseValue(raw)
	if v.Text == nil {
		return "", false
	}
	s := strings.TrimSpace(*v.Text)
	return s, s != ""
}

func ageOf(raw any) (float64, bool) {
	s, ok := scalarString(raw)
	if !ok {
		return 0, false
	}
	return parseDecimal(strings.TrimSpace(s))
}

func yearOf(raw any) (int, bool) {
	s, ok := scalarString(raw)
	if !ok {
		return 0, false
	}
	f, ok := parseDecimal(strings.TrimSpace(s))
	if !ok {
		return 0, false
	}
	year := int(math.Trunc(f))
	return year, year > 0
}

func nationOf(raw any) (Nationality, bool) {
	s, ok := scalarString(raw)
	if !ok {
		return Nationality{}, false
	}
	return SplitNation(s)
}

func scalarString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}
