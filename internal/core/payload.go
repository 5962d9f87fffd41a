package core

import "strings"

// DefaultMessage is the constant identifier carried by every payload.
const DefaultMessage = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// QRPayload is the data encoded into the scannable symbol. It is kept to three
// short fields so the symbol stays low-density.
//
// Field order is the canonical key order of the encoded JSON.
type QRPayload struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Code    string `json:"code"`
}

// Record is the full delegate record written to the JSON and CSV outputs.
// It is never encoded into the QR symbol.
type Record struct {
	Message        string `json:"message"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Code           string `json:"code"`
	Committee      string `json:"committee"`
	Country        string `json:"country"`
	FoodPreference string `json:"food preference"`
}

// Build derives the QR payload and the full record for one row and its code.
// An empty message falls back to DefaultMessage.
func Build(row Row, code, message string) (QRPayload, Record) {
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	name := row.DisplayName()

	payload := QRPayload{
		Message: message,
		Name:    name,
		Code:    code,
	}
	record := Record{
		Message:        message,
		Name:           name,
		Email:          strings.TrimSpace(row.Email),
		Code:           code,
		Committee:      row.CommitteeOrDefault(),
		Country:        row.CountryOrDefault(),
		FoodPreference: row.FoodPreferenceOrDefault(),
	}
	return payload, record
}
