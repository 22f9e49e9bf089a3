package loader

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/roach88/previa/internal/domain"
)

// The loose* types decode any JSON value without failing. A value of the
// wrong shape leaves the field unset so the normalizer can substitute the
// field default.

// decodeAny decodes b keeping numbers as json.Number.
func decodeAny(b []byte) interface{} {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

type looseString struct {
	v  string
	ok bool
}

func (s *looseString) UnmarshalJSON(b []byte) error {
	switch t := decodeAny(b).(type) {
	case string:
		s.v, s.ok = t, true
	case json.Number:
		s.v, s.ok = t.String(), true
	case bool:
		if t {
			s.v = "true"
		} else {
			s.v = "false"
		}
		s.ok = true
	}
	return nil
}

// text returns the trimmed value.
func (s looseString) text() string {
	return strings.TrimSpace(s.v)
}

// firstText returns the first non-empty trimmed value.
func firstText(values ...looseString) string {
	for _, v := range values {
		if t := v.text(); t != "" {
			return t
		}
	}
	return ""
}

type looseFloat struct {
	v  float64
	ok bool
}

func (f *looseFloat) UnmarshalJSON(b []byte) error {
	switch t := decodeAny(b).(type) {
	case json.Number:
		if x, err := t.Float64(); err == nil && domain.IsFinite(x) {
			f.v, f.ok = x, true
		}
	case string:
		f.v, f.ok = domain.ParseNumber(t)
	}
	return nil
}

// firstFloat returns the first parsed value, or def when none parsed.
func firstFloat(def float64, values ...looseFloat) float64 {
	for _, v := range values {
		if v.ok {
			return v.v
		}
	}
	return def
}

// firstNonZero treats zero like a missing value.
func firstNonZero(def float64, values ...looseFloat) float64 {
	for _, v := range values {
		if v.ok && v.v != 0 {
			return v.v
		}
	}
	return def
}

// firstInt truncates the first parsed value toward zero.
func firstInt(def int, values ...looseFloat) int {
	for _, v := range values {
		if v.ok && math.Abs(v.v) < math.MaxInt32 {
			return int(v.v)
		}
	}
	return def
}

type looseBool struct {
	v bool
}

func (f *looseBool) UnmarshalJSON(b []byte) error {
	switch t := decodeAny(b).(type) {
	case bool:
		f.v = t
	case json.Number:
		x, err := t.Float64()
		f.v = err == nil && x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "si", "sì":
			f.v = true
		}
	}
	return nil
}

// timeLayouts are tried in order for string dates.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type looseTime struct {
	v  time.Time
	ok bool
}

func (t *looseTime) UnmarshalJSON(b []byte) error {
	switch x := decodeAny(b).(type) {
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.v, t.ok = parsed, true
				return nil
			}
		}
	case json.Number:
		// Epoch milliseconds.
		if ms, err := x.Int64(); err == nil && ms > 0 {
			t.v, t.ok = time.UnixMilli(ms).UTC(), true
		}
	}
	return nil
}

// firstTime returns the first parsed time, or def.
func firstTime(def time.Time, values ...looseTime) time.Time {
	for _, v := range values {
		if v.ok {
			return v.v
		}
	}
	return def
}

type looseSource struct {
	ref *domain.SourceRef
}

func (s *looseSource) UnmarshalJSON(b []byte) error {
	var raw struct {
		Kind looseString `json:"kind"`
		ID   looseString `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	s.ref = sourceRef(raw.Kind, raw.ID)
	return nil
}

func sourceRef(kind, id looseString) *domain.SourceRef {
	k := domain.SourceKind(kind.text())
	if !k.IsValid() || id.text() == "" {
		return nil
	}
	return &domain.SourceRef{Kind: k, ID: id.text()}
}

// rawList decodes b as an array, returning ok=false for any other shape.
func rawList(b json.RawMessage) ([]json.RawMessage, bool) {
	if len(b) == 0 {
		return nil, true
	}
	var out []json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	return out, true
}

// stringList decodes an array of names, dropping non-scalar entries.
func stringList(b json.RawMessage) []string {
	items, _ := rawList(b)
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s looseString
		_ = s.UnmarshalJSON(item)
		if s.ok {
			out = append(out, s.v)
		}
	}
	return out
}
