// Package playerdoc models the nested per-player document assembled by the
// scraping jobs.
package playerdoc

import (
	"sort"
	"strconv"
	"strings"

	"github.com/riskibarqy/playerstats-ingest/internal/domain/player"
)

// Block is one category table of a season: raw header label -> raw scalar.
// A nil Block means the category was absent from the document.
type Block map[string]any

// Get returns the value stored under label and whether it was present.
func (b Block) Get(label string) (any, bool) {
	if b == nil {
		return nil, false
	}
	v, ok := b[label]
	return v, ok
}

// SortedKeys lists the raw labels of the block in byte order.
func (b Block) SortedKeys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CategoryBlock pairs a block with its category code.
type CategoryBlock struct {
	Code  string
	Block Block
}

// Season holds the category blocks of one year code.
type Season struct {
	YearCode   string
	Categories []CategoryBlock
}

// Block returns the block of the given category, nil when absent.
func (s Season) Block(code string) Block {
	for _, c := range s.Categories {
		if c.Code == code {
			return c.Block
		}
	}
	return nil
}

// ResolutionOrder is the fixed fallback order used for player level fields:
// standard, offensive, defensive.
func (s Season) ResolutionOrder() []Block {
	return []Block{
		s.Block(player.CategoryStandard),
		s.Block(player.CategoryOffensive),
		s.Block(player.CategoryDefensive),
	}
}

// ValuationPoint is a raw market value entry of the valuation history.
type ValuationPoint struct {
	Date  string
	Value any
}

// KnownCategories are the scraped blocks that carry player stats.
var KnownCategories = []string{player.CategoryStandard, player.CategoryOffensive, player.CategoryDefensive}

// Document is one player as produced by the join step.
type Document struct {
	Name        string
	ShortName   *string
	Nationality *string
	BirthYear   *int
	ExternalID  *int64
	// Seasons are kept in chronological order, see SortSeasons.
	Seasons    []Season
	Valuations []ValuationPoint
}

// OrderCategories returns the known category blocks in resolution order
// (standard, offensive, defensive). Other codes and null blocks are dropped.
func OrderCategories(blocks map[string]Block) []CategoryBlock {
	out := make([]CategoryBlock, 0, len(KnownCategories))
	for _, code := range KnownCategories {
		if b, ok := blocks[code]; ok && b != nil {
			out = append(out, CategoryBlock{Code: code, Block: b})
		}
	}
	return out
}

// SortSeasons orders seasons chronologically by the starting year of their
// year code ("2019/20", "2019-2020", "2019"). Codes without a leading year
// sort after the dated ones in byte order. The sort is stable.
func SortSeasons(seasons []Season) {
	sort.SliceStable(seasons, func(i, j int) bool {
		yi, oki := StartYear(seasons[i].YearCode)
		yj, okj := StartYear(seasons[j].YearCode)
		switch {
		case oki && okj:
			if yi != yj {
				return yi < yj
			}
			return seasons[i].YearCode < seasons[j].YearCode
		case oki != okj:
			return oki
		default:
			return seasons[i].YearCode < seasons[j].YearCode
		}
	})
}

// StartYear extracts the four digit starting year of a year code.
func StartYear(yearCode string) (int, bool) {
	code := strings.TrimSpace(yearCode)
	if len(code) < 4 {
		return 0, false
	}
	head := code[:4]
	year, err := strconv.Atoi(head)
	if err != nil || year <= 0 {
		return 0, false
	}
	if len(code) > 4 {
		next := code[4]
		if next >= '0' && next <= '9' {
			return 0, false
		}
	}
	return year, true
}
