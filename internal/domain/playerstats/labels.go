package playerstats

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
)

//go:embed labels.yaml
var defaultLabelsYAML []byte

// FieldLabels lists the candidate header labels per resolved attribute.
type FieldLabels struct {
	Position []string `yaml:"position"`
	Club     []string `yaml:"club"`
	Age      []string `yaml:"age"`
	Nation   []string `yaml:"nation"`
	Born     []string `yaml:"born"`
}

// LabelMap maps scraped headers onto the attributes and season columns the
// engine persists. Alternate source formats supply their own map.
type LabelMap struct {
	Fields        FieldLabels       `yaml:"fields"`
	SeasonColumns map[string]string `yaml:"season_columns"`
	SkipKeys      []string          `yaml:"skip_keys"`
}

var (
	defaultLabelsOnce sync.Once
	defaultLabels     LabelMap
)

// DefaultLabelMap returns a copy of the embedded label map.
func DefaultLabelMap() LabelMap {
	defaultLabelsOnce.Do(func() {
		m, err := ParseLabelMap(defaultLabelsYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded labels.yaml: %v", err))
		}
		defaultLabels = m
	})
	return defaultLabels.clone()
}

// ParseLabelMap decodes a YAML label map without defaults.
func ParseLabelMap(data []byte) (LabelMap, error) {
	var m LabelMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return LabelMap{}, fmt.Errorf("decode label map: %w", err)
	}
	if err := m.Validate(); err != nil {
		return LabelMap{}, err
	}
	return m, nil
}

// LoadLabelMap reads a YAML file and overlays it on the defaults. Sections left
// out of the file keep their default labels. An empty path returns the
// defaults.
func LoadLabelMap(path string) (LabelMap, error) {
	base := DefaultLabelMap()
	if strings.TrimSpace(path) == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return LabelMap{}, fmt.Errorf("read label map %s: %w", path, err)
	}

	var override LabelMap
	if err := yaml.Unmarshal(data, &override); err != nil {
		return LabelMap{}, fmt.Errorf("decode label map %s: %w", path, err)
	}

	merged := base.merge(override)
	if err := merged.Validate(); err != nil {
		return LabelMap{}, fmt.Errorf("label map %s: %w", path, err)
	}
	return merged, nil
}

func (m LabelMap) Validate() error {
	fields := map[string][]string{
		"position": m.Fields.Position,
		"club":     m.Fields.Club,
		"age":      m.Fields.Age,
		"nation":   m.Fields.Nation,
		"born":     m.Fields.Born,
	}
	for name, labels := range fields {
		if len(labels) == 0 {
			return fmt.Errorf("field %s has no labels", name)
		}
	}
	for label, col := range m.SeasonColumns {
		if !player.IsSeasonMetricColumn(col) {
			return fmt.Errorf("season column %q for label %q is not a player_season column", col, label)
		}
	}
	return nil
}

// Skip reports whether a raw label is excluded from stat rows.
func (m LabelMap) Skip(rawKey string) bool {
	for _, k := range m.SkipKeys {
		if strings.EqualFold(strings.TrimSpace(rawKey), k) {
			return true
		}
	}
	return false
}

func (m LabelMap) merge(o LabelMap) LabelMap {
	out := m.clone()
	pick := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = append([]string(nil), src...)
		}
	}
	pick(&out.Fields.Position, o.Fields.Position)
	pick(&out.Fields.Club, o.Fields.Club)
	pick(&out.Fields.Age, o.Fields.Age)
	pick(&out.Fields.Nation, o.Fields.Nation)
	pick(&out.Fields.Born, o.Fields.Born)
	if o.SeasonColumns != nil {
		out.SeasonColumns = make(map[string]string, len(o.SeasonColumns))
		for k, v := range o.SeasonColumns {
			out.SeasonColumns[k] = v
		}
	}
	if o.SkipKeys != nil {
		out.SkipKeys = append([]string(nil), o.SkipKeys...)
	}
	return out
}

func (m LabelMap) clone() LabelMap {
	out := LabelMap{
		Fields: FieldLabels{
			Position: append([]string(nil), m.Fields.Position...),
			Club:     append([]string(nil), m.Fields.Club...),
			Age:      append([]string(nil), m.Fields.Age...),
			Nation:   append([]string(nil), m.Fields.Nation...),
			Born:     append([]string(nil), m.Fields.Born...),
		},
		SkipKeys: append([]string(nil), m.SkipKeys...),
	}
	out.SeasonColumns = make(map[string]string, len(m.SeasonColumns))
	for k, v := range m.SeasonColumns {
		out.SeasonColumns[k] = v
	}
	return out
}
