package playerdoc

import "testing"

func TestSortSeasons(t *testing.T) {
	seasons := []Season{
		{YearCode: "2021-2022"},
		{YearCode: "career"},
		{YearCode: "2019/20"},
		{YearCode: "2020"},
		{YearCode: "2019"},
		{YearCode: "abc"},
	}
	SortSeasons(seasons)

	want := []string{"2019", "2019/20", "2020", "2021-2022", "abc", "career"}
	for i, s := range seasons {
		if s.YearCode != want[i] {
			t.Fatalf("unexpected order at %d: got=%s want=%s", i, s.YearCode, want[i])
		}
	}
}

func TestStartYear(t *testing.T) {
	tests := []struct {
		code string
		year int
		ok   bool
	}{
		{code: "2019/20", year: 2019, ok: true},
		{code: " 2019-2020 ", year: 2019, ok: true},
		{code: "2019", year: 2019, ok: true},
		{code: "20192", ok: false},
		{code: "19/20", ok: false},
		{code: "", ok: false},
	}
	for _, tc := range tests {
		year, ok := StartYear(tc.code)
		if ok != tc.ok || year != tc.year {
			t.Fatalf("StartYear(%q) = (%d, %v), want (%d, %v)", tc.code, year, ok, tc.year, tc.ok)
		}
	}
}

func TestOrderCategories(t *testing.T) {
	ordered := OrderCategories(map[string]Block{
		"passing":   {"Cmp": "10"},
		"defensive": {"Tkl": "2"},
		"standard":  {"Playing Time MP": "3"},
		"offensive": nil,
		"goalkeep":  {"Saves": "1"},
	})

	want := []string{"standard", "defensive"}
	if len(ordered) != len(want) {
		t.Fatalf("unexpected categories: %+v", ordered)
	}
	for i, c := range ordered {
		if c.Code != want[i] {
			t.Fatalf("unexpected category at %d: got=%s want=%s", i, c.Code, want[i])
		}
	}

	s := Season{YearCode: "2019/20", Categories: ordered}
	blocks := s.ResolutionOrder()
	if blocks[0] == nil || blocks[1] != nil || blocks[2] == nil {
		t.Fatalf("unexpected resolution order: %+v", blocks)
	}
}

func TestBlockSortedKeys(t *testing.T) {
	keys := Block{"b": 1, "A": 2, "a": 3}.SortedKeys()
	if len(keys) != 3 || keys[0] != "A" || keys[1] != "a" || keys[2] != "b" {
		t.Fatalf("unexpected keys: %+v", keys)
	}
	if _, ok := Block(nil).Get("x"); ok {
		t.Fatalf("nil block must not report values")
	}
}
