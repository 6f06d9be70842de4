package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Session is one metadata document: its field values plus the source
// identifier (the originating filename) used to attribute findings.
type Session struct {
	Source string
	Fields map[string]Value
}

// New returns an empty session for the given source.
func New(source string) *Session {
	return &Session{Source: source, Fields: make(map[string]Value)}
}

// Get returns a field value if present.
func (s *Session) Get(name string) (Value, bool) {
	if s == nil || s.Fields == nil {
		return Value{}, false
	}
	v, ok := s.Fields[name]
	return v, ok
}

// Has reports whether the field is present.
func (s *Session) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Set stores a field value.
func (s *Session) Set(name string, v Value) {
	if s.Fields == nil {
		s.Fields = make(map[string]Value)
	}
	s.Fields[name] = v
}

// Delete removes a field.
func (s *Session) Delete(name string) {
	delete(s.Fields, name)
}

// Names returns the field names in sorted order.
func (s *Session) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy so callers can normalize without touching the
// original document.
func (s *Session) Clone() *Session {
	out := New(s.Source)
	for name, v := range s.Fields {
		if v.kind == KindNumbers {
			v.nums = append([]float64(nil), v.nums...)
		}
		out.Fields[name] = v
	}
	return out
}

// MarshalJSON emits the field map.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Fields)
}

// ErrNotObject is returned when a metadata document is not a JSON object.
var ErrNotObject = errors.New("metadata document must be a JSON object")

// Decode reads a JSON metadata document. Fields holding null are treated as
// absent.
func Decode(source string, r io.Reader) (*Session, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode %s: %w", source, ErrNotObject)
	}
	s := New(source)
	for name, value := range obj {
		if value == nil {
			continue
		}
		s.Fields[name] = FromJSON(value)
	}
	return s, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(source string, data []byte) (*Session, error) {
	return Decode(source, bytes.NewReader(data))
}

func decodeAny(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Observation is one present value of a field together with the session it
// came from.
type Observation struct {
	Source string `json:"source"`
	Value  Value  `json:"value"`
}
