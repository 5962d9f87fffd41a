package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrbadge/internal/core"
	"qrbadge/internal/render"
	"qrbadge/internal/testutil"
	"qrbadge/internal/trace"
)

const header = "Name,Email,Committee,Country,Food Preference\n"

func writeInput(t *testing.T, dir, body string) string {
	t.Helper()
	return writeRaw(t, dir, header+body)
}

func writeRaw(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "delegates.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestDriver(t *testing.T, qr render.QROptions, opts Options, options ...Option) *Driver {
	t.Helper()
	renderer, err := render.NewQRRenderer(qr)
	require.NoError(t, err)
	d, err := NewDriver(core.NewSeededAllocator(1), renderer, opts, options...)
	require.NoError(t, err)
	return d
}

// fastQR skips the upscale; used where the image content is not inspected.
func fastQR() render.QROptions {
	o := render.DefaultQROptions()
	o.BoxSize = 2
	o.Resolution = 0
	return o
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRun_JaneDoe(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	in := writeRaw(t, dir, "Name,Committee,Country\nJane Doe,Economic and Social Council,Canada\n")

	d := newTestDriver(t, render.DefaultQROptions(), Options{Outputs: AllOutputs()})
	summary, err := d.Run(context.Background(), in, out)
	require.NoError(t, err)

	require.Equal(t, 1, summary.Attempted)
	require.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 1, summary.QRCodes)
	assert.Equal(t, 0, summary.Cards)

	res := summary.Results()[0]
	assert.Regexp(t, regexp.MustCompile(`^ECO\d{3}$`), res.Code)
	assert.Equal(t, "qr_codes/"+res.Code+".png", res.QRPath)
	assert.Empty(t, res.CardPath)

	text := testutil.DecodeQRFile(t, filepath.Join(out, res.QRPath))
	var payload core.QRPayload
	require.NoError(t, json.Unmarshal([]byte(text), &payload))
	assert.Equal(t, core.QRPayload{Message: core.DefaultMessage, Name: "Jane Doe", Code: res.Code}, payload)

	data, err := os.ReadFile(filepath.Join(out, "output", "all_delegates.json"))
	require.NoError(t, err)
	var records []core.Record
	require.NoError(t, json.Unmarshal(data, &records))
	want := []core.Record{{
		Message:        core.DefaultMessage,
		Name:           "Jane Doe",
		Code:           res.Code,
		Committee:      "Economic and Social Council",
		Country:        "Canada",
		FoodPreference: core.DefaultFoodPreference,
	}}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	results := readCSV(t, filepath.Join(out, "output", "results.csv"))
	require.Len(t, results, 2)
	assert.Equal(t, []string{"Name", "Committee", "Country", "code"}, results[0])
	assert.Equal(t, []string{"Jane Doe", "Economic and Social Council", "Canada", res.Code}, results[1])

	delegates := readCSV(t, filepath.Join(out, "output", "delegates_with_codes.csv"))
	require.Len(t, delegates, 2)
	assert.Equal(t, "Jane Doe", delegates[1][0])
	assert.Empty(t, delegates[1][1], "no email column in the input")
	assert.Equal(t, res.Code, delegates[1][5])
	assert.Equal(t, res.QRPath, delegates[1][6])

	assert.Equal(t, []string{"output/results.csv", "output/delegates_with_codes.csv", "output/all_delegates.json"}, summary.Outputs)
}

func TestRun_CommitteeWithPathCharacters(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	tmpl := filepath.Join(dir, "badge.png")
	testutil.WriteTemplate(t, tmpl, 300, 300)
	in := writeInput(t, dir, "Ann,,../Legal,Chile,\nBen,,A/B Council,Peru,\n")

	opts := Options{Cards: true, Template: tmpl, Outputs: AllOutputs()}
	d := newTestDriver(t, render.DefaultQROptions(), opts)
	summary, err := d.Run(context.Background(), in, out)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Succeeded)
	require.Equal(t, 2, summary.Cards)

	prefixes := []string{"___", "A_B"}
	for i, res := range summary.Results() {
		assert.Regexp(t, regexp.MustCompile(`^`+prefixes[i]+`\d{3}$`), res.Code)
		assert.NotContains(t, res.Code, "/")
		assert.Equal(t, "qr_codes/"+res.Code+".png", res.QRPath)
		assert.Equal(t, "id_cards/"+res.Code+".png", res.CardPath)
		assert.FileExists(t, filepath.Join(out, res.CardPath))

		text := testutil.DecodeQRFile(t, filepath.Join(out, res.QRPath))
		var payload core.QRPayload
		require.NoError(t, json.Unmarshal([]byte(text), &payload))
		assert.Equal(t, res.Code, payload.Code)
	}

	for _, sub := range []string{"qr_codes", "id_cards"} {
		entries, err := os.ReadDir(filepath.Join(out, sub))
		require.NoError(t, err)
		assert.Len(t, entries, 2, "%s stays flat", sub)
		for _, e := range entries {
			assert.False(t, e.IsDir(), "unexpected directory %s/%s", sub, e.Name())
		}
	}
	stray, err := filepath.Glob(filepath.Join(out, "*.png"))
	require.NoError(t, err)
	assert.Empty(t, stray)
}

func TestRun_DefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, " , , , , \n")

	d := newTestDriver(t, fastQR(), Options{Outputs: Outputs{JSON: true}})
	summary, err := d.Run(context.Background(), in, dir)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Succeeded)

	rec := summary.Results()[0].Record
	assert.Equal(t, "Unknown", rec.Name)
	assert.Equal(t, "GEN", rec.Committee)
	assert.Equal(t, "Unknown", rec.Country)
	assert.Equal(t, "Not Specified", rec.FoodPreference)
	assert.Empty(t, rec.Email)
	assert.True(t, strings.HasPrefix(rec.Code, "GEN"), rec.Code)

	_, err = os.Stat(filepath.Join(dir, "output", "results.csv"))
	assert.True(t, os.IsNotExist(err), "disabled outputs are not written")
}

func TestRun_RowIsolation(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	tmpl := filepath.Join(dir, "badge.png")
	testutil.WriteTemplate(t, tmpl, 300, 300)

	in := writeInput(t, dir, strings.Join([]string{
		"Ann,a@x.org,Economics,Chile,Vegan",
		"Ben,b@x.org,Health,Peru,",
		"Cat,c@x.org,Security,Japan,Halal",
		"Dan,d@x.org,Legal,Ghana,",
		"Eve,e@x.org,Economics,Spain,",
	}, "\n")+"\n")

	opts := Options{
		Cards:              true,
		Template:           tmpl,
		CommitteeTemplates: map[string]string{"SECURITY": filepath.Join(dir, "missing.png")},
		Offset:             image.Point{},
		Outputs:            AllOutputs(),
	}
	d := newTestDriver(t, fastQR(), opts)
	summary, err := d.Run(context.Background(), in, out)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Attempted)
	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 5, summary.QRCodes)
	assert.Equal(t, 4, summary.Cards)

	failures := summary.Failures()
	require.Len(t, failures, 1)
	f := failures[0]
	assert.Equal(t, 3, f.Row)
	assert.Equal(t, "Cat", f.Name)
	assert.Equal(t, core.KindTemplateNotFound, f.Kind)
	assert.Equal(t, StageRendered, f.Stage)
	assert.True(t, errors.Is(f.Err, core.ErrTemplateNotFound))
	assert.FileExists(t, filepath.Join(out, f.QRPath))
	assert.NoFileExists(t, filepath.Join(out, "id_cards", f.Code+".png"))

	var rows []int
	for _, r := range summary.Results() {
		rows = append(rows, r.Row.Index)
		assert.FileExists(t, filepath.Join(out, r.QRPath))
		assert.FileExists(t, filepath.Join(out, r.CardPath))
	}
	assert.Equal(t, []int{1, 2, 4, 5}, rows)

	results := readCSV(t, filepath.Join(out, "output", "results.csv"))
	assert.Len(t, results, 5, "header plus the four successful rows")
}

func TestRun_InputLoadFailureCreatesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")

	d := newTestDriver(t, fastQR(), Options{Outputs: AllOutputs()})
	summary, err := d.Run(context.Background(), filepath.Join(dir, "nope.csv"), out)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, errors.Is(err, core.ErrInputLoad))
	assert.NoDirExists(t, out)
}

func TestRun_CancelledBeforeFirstRow(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "Ann,a@x.org,Economics,Chile,Vegan\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDriver(t, fastQR(), Options{Outputs: AllOutputs()})
	summary, err := d.Run(ctx, in, dir)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Equal(t, 0, summary.Attempted)
	assert.NoDirExists(t, filepath.Join(dir, "output"))
	assert.NoDirExists(t, filepath.Join(dir, "qr_codes"))
}

func TestRun_CodesUniqueWithinRun(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "D%d,,Economics,,\n", i)
	}
	in := writeInput(t, dir, b.String())

	qr := fastQR()
	qr.BoxSize = 1
	d := newTestDriver(t, qr, Options{})
	summary, err := d.Run(context.Background(), in, dir)
	require.NoError(t, err)
	require.Equal(t, 150, summary.Succeeded)

	seen := make(map[string]bool)
	for _, r := range summary.Results() {
		assert.False(t, seen[r.Code], "duplicate code %s", r.Code)
		seen[r.Code] = true
		assert.True(t, strings.HasPrefix(r.Code, "ECO"))
	}
}

func TestRun_SameSeedSameTrace(t *testing.T) {
	body := "Ann,a@x.org,Economics,Chile,Vegan\nBen,,Health,,\n, , , , \n"

	hashOf := func() string {
		dir := t.TempDir()
		in := writeInput(t, dir, body)
		rec := trace.NewRecorder()
		d := newTestDriver(t, fastQR(), Options{Outputs: AllOutputs()}, WithTraceSink(rec))
		summary, err := d.Run(context.Background(), in, dir)
		require.NoError(t, err)

		tr := rec.Trace(summary.InputHash.String())
		require.NoError(t, tr.Validate())
		h, err := tr.Hash()
		require.NoError(t, err)
		return h
	}

	assert.Equal(t, hashOf(), hashOf())
}

func TestRun_TraceRecordsFailureReason(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "Ann,a@x.org,Economics,Chile,Vegan\n")

	rec := trace.NewRecorder()
	d := newTestDriver(t, fastQR(), Options{Cards: true, Template: filepath.Join(dir, "missing.png")}, WithTraceSink(rec))
	summary, err := d.Run(context.Background(), in, dir)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)

	var kinds []trace.EventKind
	for _, e := range rec.Snapshot() {
		kinds = append(kinds, e.Kind)
		if e.Kind == trace.EventRowFailed {
			assert.Equal(t, "TemplateNotFound", e.Reason)
		}
	}
	assert.Equal(t, []trace.EventKind{trace.EventRowCoded, trace.EventQRRendered, trace.EventRowFailed}, kinds)
}

func TestNewDriver_Validation(t *testing.T) {
	renderer, err := render.NewQRRenderer(fastQR())
	require.NoError(t, err)

	_, err = NewDriver(nil, renderer, Options{})
	require.Error(t, err)
	_, err = NewDriver(core.NewSeededAllocator(1), nil, Options{})
	require.Error(t, err)
	_, err = NewDriver(core.NewSeededAllocator(1), renderer, Options{Cards: true})
	require.Error(t, err)
}
