package core

import (
	"bytes"
	"encoding/json"
)

// Result is one successfully processed delegate: the source row, its code, the
// files produced for it and the full record.
//
// CardPath is empty when card generation is disabled.
type Result struct {
	Row      Row
	Code     string
	QRPath   string
	CardPath string
	Record   Record
}

// MarshalCompact encodes v as compact JSON in struct field order, without HTML
// escaping and without a trailing newline.
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
