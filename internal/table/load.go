// Package table reads the delegate input table and writes the aggregate outputs.
//
// CSV handling uses encoding/csv. Every output is written atomically.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"

	"qrbadge/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed delegate input.
type Table struct {
	Path   string
	Header []string
	Rows   []core.Row
	Hash   core.InputHash
}

// Load reads and parses the delimited table at path. comma is the field
// delimiter; zero means ','.
//
// Any failure (missing file, empty file, ragged or malformed records) is an
// input load error. Nothing is written.
func Load(path string, comma rune) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.InputLoadError(path, err)
	}
	t, err := Parse(data, comma)
	if err != nil {
		return nil, core.InputLoadError(path, err)
	}
	t.Path = path
	return t, nil
}

// Parse parses raw table bytes. The first record is the header.
func Parse(data []byte, comma rune) (*Table, error) {
	hash := core.HashInput(data)
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	if comma != 0 {
		r.Comma = comma
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.New("empty table: missing header row")
	}

	header := records[0]
	cols := resolveColumns(header)
	t := &Table{Header: header, Hash: hash}
	t.Rows = make([]core.Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		t.Rows = append(t.Rows, cols.row(i+1, header, rec))
	}
	return t, nil
}

// columns records where each recognized field sits in the header; -1 if absent.
type columns struct {
	name, email, committee, country, food int
}

func resolveColumns(header []string) columns {
	c := columns{name: -1, email: -1, committee: -1, country: -1, food: -1}
	for i, h := range header {
		var slot *int
		switch normalizeHeader(h) {
		case normalizeHeader(core.ColumnName):
			slot = &c.name
		case normalizeHeader(core.ColumnEmail):
			slot = &c.email
		case normalizeHeader(core.ColumnCommittee):
			slot = &c.committee
		case normalizeHeader(core.ColumnCountry):
			slot = &c.country
		case normalizeHeader(core.ColumnFoodPreference):
			slot = &c.food
		default:
			continue
		}
		// First matching column wins.
		if *slot == -1 {
			*slot = i
		}
	}
	return c
}

func (c columns) row(index int, header, rec []string) core.Row {
	get := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	return core.Row{
		Index:          index,
		Header:         header,
		Record:         rec,
		Name:           get(c.name),
		Email:          get(c.email),
		Committee:      get(c.committee),
		Country:        get(c.country),
		FoodPreference: get(c.food),
	}
}

// normalizeHeader folds case and drops spaces, underscores and hyphens, so
// "Food Preference", "food_preference" and "FoodPreference" all match.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, h)
}

// ParseDelimiter accepts a single-character delimiter or the names "comma",
// "tab", "semicolon" and "pipe".
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "comma", ",":
		return ',', nil
	case "tab", "\\t", "\t":
		return '\t', nil
	case "semicolon", ";":
		return ';', nil
	case "pipe", "|":
		return '|', nil
	}
	r := []rune(s)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", s)
	}
	return r[0], nil
}
