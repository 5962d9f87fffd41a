package table

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"qrbadge/internal/core"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoad_RecognizedColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delegates.csv")
	writeFile(t, path, "Name,Email,Committee,Country,Food Preference,Seat\n"+
		"Jane Doe,jane@example.org,Economic and Social Council,Canada,Vegan,12\n"+
		" John Roe ,,UNSC,,,13\n")

	tbl, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
	if tbl.Path != path || tbl.Hash == "" {
		t.Fatalf("expected path and hash to be set: %+v", tbl)
	}

	jane := tbl.Rows[0]
	if jane.Index != 1 || jane.Name != "Jane Doe" || jane.Email != "jane@example.org" ||
		jane.Committee != "Economic and Social Council" || jane.Country != "Canada" || jane.FoodPreference != "Vegan" {
		t.Fatalf("row 1 mismatch: %+v", jane)
	}
	if len(jane.Record) != 6 || jane.Record[5] != "12" {
		t.Fatalf("raw record must be kept verbatim: %q", jane.Record)
	}

	john := tbl.Rows[1]
	if john.Index != 2 || john.Name != "John Roe" || john.Country != "" {
		t.Fatalf("row 2 mismatch: %+v", john)
	}
	if john.CountryOrDefault() != core.DefaultCountry || john.FoodPreferenceOrDefault() != core.DefaultFoodPreference {
		t.Fatalf("defaults not applied: %+v", john)
	}
}

func TestLoad_MissingColumnsAndHeaderVariants(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.csv")
	writeFile(t, path, "\ufeffNAME,food_preference\nJane,Halal\n")

	tbl, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := tbl.Rows[0]
	if r.Name != "Jane" || r.FoodPreference != "Halal" {
		t.Fatalf("unexpected row: %+v", r)
	}
	if r.Committee != "" || r.CommitteeOrDefault() != core.DefaultCommittee {
		t.Fatalf("missing committee should default: %+v", r)
	}
	if tbl.Header[0] != "NAME" {
		t.Fatalf("BOM must be stripped from the header, got %q", tbl.Header[0])
	}
}

func TestLoad_Semicolon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.csv")
	writeFile(t, path, "Name;Committee\nJane;WHO\n")
	tbl, err := Load(path, ';')
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Rows[0].Committee != "WHO" {
		t.Fatalf("unexpected row: %+v", tbl.Rows[0])
	}
}

func TestLoad_Failures(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	writeFile(t, empty, "")
	ragged := filepath.Join(dir, "ragged.csv")
	writeFile(t, ragged, "Name,Committee\nJane,WHO,extra\n")
	badQuote := filepath.Join(dir, "quote.csv")
	writeFile(t, badQuote, "Name,Committee\n\"Jane,WHO\n")

	for _, p := range []string{filepath.Join(dir, "missing.csv"), empty, ragged, badQuote} {
		_, err := Load(p, 0)
		if !errors.Is(err, core.ErrInputLoad) {
			t.Fatalf("Load(%s): expected ErrInputLoad, got %v", filepath.Base(p), err)
		}
	}
}

func TestLoad_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.csv")
	writeFile(t, path, "Name,Committee\n")
	tbl, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(tbl.Rows))
	}
}

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{"": ',', "tab": '\t', ";": ';', "pipe": '|', "#": '#'}
	for in, want := range cases {
		got, err := ParseDelimiter(in)
		if err != nil || got != want {
			t.Fatalf("ParseDelimiter(%q) = %q, %v", in, got, err)
		}
	}
	for _, bad := range []string{"ab", "\"", "\n"} {
		if _, err := ParseDelimiter(bad); err == nil {
			t.Fatalf("ParseDelimiter(%q): expected error", bad)
		}
	}
}
