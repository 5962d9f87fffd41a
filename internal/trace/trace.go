// Package trace records the logical decisions of a batch run.
//
// A RunTrace is the ordered, canonical account of what happened to each input
// row: which code it was given, which images were written, and why it failed.
// It carries no timestamps and no error strings, so two runs with the same
// input and seed produce byte-identical traces.
package trace

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"qrbadge/internal/fsutil"
)

// RunTrace is the canonical record of one batch run.
//
// InputHash identifies the input table. Events are ordered by Canonicalize:
// row index first, then pipeline stage.
type RunTrace struct {
	InputHash string
	Events    []Event
}

// EventKind is the stable discriminator of an Event. The string values are part
// of the trace's canonical bytes; do not rename.
type EventKind string

const (
	EventRowCoded       EventKind = "RowCoded"
	EventQRRendered     EventKind = "QRRendered"
	EventCardComposited EventKind = "CardComposited"
	EventRowFailed      EventKind = "RowFailed"
	EventOutputsWritten EventKind = "OutputsWritten"
)

// Event is a single logical step.
//
// Row is the 1-based input row; zero marks run-level events such as
// EventOutputsWritten. Reason is a stable error kind, never a message.
type Event struct {
	Kind      EventKind
	Row       int
	Code      string
	Reason    string
	Artifacts []string
}

// Validate checks basic invariants and returns a descriptive error.
func (t *RunTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.InputHash == "" {
		return errors.New("inputHash is required")
	}
	for i, e := range t.Events {
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if e.Row < 0 {
			return fmt.Errorf("events[%d].row must be >= 0", i)
		}
		if isRowEvent(e.Kind) && e.Row == 0 {
			return fmt.Errorf("events[%d].row is required for kind %q", i, e.Kind)
		}
		if e.Kind == EventRowFailed && e.Reason == "" {
			return fmt.Errorf("events[%d].reason is required for kind %q", i, e.Kind)
		}
		for j, a := range e.Artifacts {
			if a == "" {
				return fmt.Errorf("events[%d].artifacts[%d] is empty", i, j)
			}
		}
	}
	return nil
}

func isRowEvent(kind EventKind) bool {
	switch kind {
	case EventRowCoded, EventQRRendered, EventCardComposited, EventRowFailed:
		return true
	default:
		return false
	}
}

// Canonicalize sorts artifacts within each event and events by
// (row, stage, code, reason, artifacts). Run-level events (row 0) sort last.
func (t *RunTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Artifacts) == 0 {
			t.Events[i].Artifacts = nil
			continue
		}
		art := append([]string(nil), t.Events[i].Artifacts...)
		sort.Strings(art)
		t.Events[i].Artifacts = art
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if rowKey(a.Row) != rowKey(b.Row) {
			return rowKey(a.Row) < rowKey(b.Row)
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return compareStringSlices(a.Artifacts, b.Artifacts)
	})
}

func rowKey(row int) int {
	if row == 0 {
		return int(^uint(0) >> 1)
	}
	return row
}

func kindOrder(k EventKind) int {
	switch k {
	case EventRowCoded:
		return 10
	case EventQRRendered:
		return 20
	case EventCardComposited:
		return 30
	case EventRowFailed:
		return 40
	case EventOutputsWritten:
		return 50
	default:
		return 1000
	}
}

func compareStringSlices(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// CanonicalJSON returns the canonical encoding of a canonicalized copy of t.
func (t RunTrace) CanonicalJSON() ([]byte, error) {
	cp := RunTrace{InputHash: t.InputHash, Events: append([]Event(nil), t.Events...)}
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&cp)
}

// Hash returns the sha256 hex of the canonical JSON bytes.
func (t RunTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// WriteFile writes the canonical JSON of t to path atomically.
func (t RunTrace) WriteFile(path string) error {
	b, err := t.CanonicalJSON()
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, append(b, '\n'), 0o644)
}

// ReadFile loads a trace written by WriteFile.
func ReadFile(path string) (RunTrace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunTrace{}, err
	}
	var t RunTrace
	if err := json.Unmarshal(data, &t); err != nil {
		return RunTrace{}, err
	}
	return t, nil
}

// MarshalJSON fixes field order. It does not sort; see CanonicalJSON.
func (t RunTrace) MarshalJSON() ([]byte, error) {
	if t.InputHash == "" {
		return nil, errors.New("inputHash is required")
	}
	var buf bytes.Buffer
	buf.WriteString(`{"inputHash":`)
	h, _ := json.Marshal(t.InputHash)
	buf.Write(h)
	buf.WriteString(`,"events":[`)
	for i := range t.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(t.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

func (t *RunTrace) UnmarshalJSON(data []byte) error {
	var raw struct {
		InputHash string  `json:"inputHash"`
		Events    []Event `json:"events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.InputHash = raw.InputHash
	t.Events = raw.Events
	return nil
}

// MarshalJSON fixes field order and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var artifacts []string
	if len(e.Artifacts) > 0 {
		artifacts = append([]string(nil), e.Artifacts...)
		sort.Strings(artifacts)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"kind":`)
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	if e.Row != 0 {
		fmt.Fprintf(&buf, `,"row":%d`, e.Row)
	}
	if e.Code != "" {
		buf.WriteString(`,"code":`)
		cb, _ := json.Marshal(e.Code)
		buf.Write(cb)
	}
	if e.Reason != "" {
		buf.WriteString(`,"reason":`)
		rb, _ := json.Marshal(e.Reason)
		buf.Write(rb)
	}
	if len(artifacts) > 0 {
		buf.WriteString(`,"artifacts":`)
		ab, _ := json.Marshal(artifacts)
		buf.Write(ab)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind      string   `json:"kind"`
		Row       int      `json:"row"`
		Code      string   `json:"code"`
		Reason    string   `json:"reason"`
		Artifacts []string `json:"artifacts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Event{Kind: EventKind(raw.Kind), Row: raw.Row, Code: raw.Code, Reason: raw.Reason, Artifacts: raw.Artifacts}
	return nil
}
