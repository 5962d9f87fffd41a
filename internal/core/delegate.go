package core

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Recognized input columns. Matching against the input header is case-insensitive.
const (
	ColumnName           = "Name"
	ColumnEmail          = "Email"
	ColumnCommittee      = "Committee"
	ColumnCountry        = "Country"
	ColumnFoodPreference = "Food Preference"
)

// Values substituted for missing or blank fields.
const (
	DefaultName           = "Unknown"
	DefaultCountry        = "Unknown"
	DefaultCommittee      = "GEN"
	DefaultFoodPreference = "Not Specified"
)

// Row is a single delegate from the input table.
//
// Header and Record carry the original columns verbatim so the augmented results
// table can reproduce the input. The named fields hold the trimmed raw values of
// the recognized columns; an absent column and a blank cell are both "".
type Row struct {
	// Index is the 1-based position of the row among the data rows.
	Index int

	Header []string
	Record []string

	Name           string
	Email          string
	Committee      string
	Country        string
	FoodPreference string
}

// DisplayName returns the name used in payloads and logs.
func (r Row) DisplayName() string { return orDefault(r.Name, DefaultName) }

// CommitteeOrDefault returns the committee, or GEN when none was given.
func (r Row) CommitteeOrDefault() string { return orDefault(r.Committee, DefaultCommittee) }

func (r Row) CountryOrDefault() string { return orDefault(r.Country, DefaultCountry) }

func (r Row) FoodPreferenceOrDefault() string {
	return orDefault(r.FoodPreference, DefaultFoodPreference)
}

// Validate rejects rows whose recognized fields cannot be encoded faithfully.
func (r Row) Validate() error {
	fields := []struct {
		column string
		value  string
	}{
		{ColumnName, r.Name},
		{ColumnEmail, r.Email},
		{ColumnCommittee, r.Committee},
		{ColumnCountry, r.Country},
		{ColumnFoodPreference, r.FoodPreference},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.value) {
			return RowError(fmt.Sprintf("malformed %s field: invalid UTF-8", f.column), nil)
		}
		if strings.ContainsRune(f.value, 0) {
			return RowError(fmt.Sprintf("malformed %s field: NUL byte", f.column), nil)
		}
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
