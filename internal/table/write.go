package table

import (
	"bytes"
	"encoding/csv"
	"encoding/json"

	"qrbadge/internal/core"
	"qrbadge/internal/fsutil"
)

// CodeColumn is the column appended to the input header in the results table.
const CodeColumn = "code"

// DelegatesHeader is the header of the per-delegate summary table.
var DelegatesHeader = []string{
	"Original_Name",
	"Original_Email",
	"Original_Committee",
	"Original_Country",
	"Original_Food_Preference",
	"Generated_Code",
	"QR_Filename",
	"ID_Card_Filename",
	"JSON_Data",
}

// WriteResultsCSV writes the input table augmented with a code column, one row
// per result, in result order. An existing code column, matched the way input
// headers are (so "Code" or " CODE " count), is overwritten in place.
func WriteResultsCSV(path string, header []string, results []core.Result) error {
	codeIdx := -1
	for i, h := range header {
		if normalizeHeader(h) == normalizeHeader(CodeColumn) {
			codeIdx = i
			break
		}
	}
	outHeader := header
	if codeIdx < 0 {
		outHeader = append(append([]string(nil), header...), CodeColumn)
		codeIdx = len(header)
	}

	rows := make([][]string, 0, len(results)+1)
	rows = append(rows, outHeader)
	for _, r := range results {
		rec := make([]string, len(outHeader))
		copy(rec, r.Row.Record)
		rec[codeIdx] = r.Code
		rows = append(rows, rec)
	}
	return writeCSV(path, rows)
}

// WriteDelegatesCSV writes one row per result with the original recognized
// fields (as given, not defaulted), the code, the output files and the full
// record as JSON.
func WriteDelegatesCSV(path string, results []core.Result) error {
	rows := make([][]string, 0, len(results)+1)
	rows = append(rows, DelegatesHeader)
	for _, r := range results {
		data, err := core.MarshalCompact(r.Record)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			r.Row.Name,
			r.Row.Email,
			r.Row.Committee,
			r.Row.Country,
			r.Row.FoodPreference,
			r.Code,
			r.QRPath,
			r.CardPath,
			string(data),
		})
	}
	return writeCSV(path, rows)
}

// WriteRecordsJSON writes the full records as an indented JSON array. No
// results yields "[]".
func WriteRecordsJSON(path string, results []core.Result) error {
	records := make([]core.Record, 0, len(results))
	for _, r := range results {
		records = append(records, r.Record)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}

func writeCSV(path string, rows [][]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
