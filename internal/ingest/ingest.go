// Package ingest turns uploaded or on-disk files into session groups.
//
// A group is one ASL metadata document with its optional M0 document and
// aslcontext volume list. Files are grouped by naming convention in the order
// they are supplied: an *asl.json starts a new group and every following
// *m0scan.json or *.tsv attaches to it.
package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"aslreport/internal/session"
)

// ErrInvalidFile marks input that cannot be ingested.
var ErrInvalidFile = errors.New("invalid file")

// ContextHeader is the required first line of an aslcontext TSV.
const ContextHeader = "volume_type"

// File is a named input document.
type File struct {
	Name string
	Data []byte
}

// Context is a parsed aslcontext volume list.
type Context struct {
	Source  string
	Volumes []string
}

// Group is one ASL session with its companions.
type Group struct {
	ASL     *session.Session
	M0      *session.Session
	Context *Context
}

// Sources lists the names of every file in the group.
func (g Group) Sources() []string {
	out := []string{g.ASL.Source}
	if g.M0 != nil {
		out = append(out, g.M0.Source)
	}
	if g.Context != nil {
		out = append(out, g.Context.Source)
	}
	return out
}

// GroupFiles parses and groups files. Names other than .json or .tsv are
// rejected, as is any file that fails to parse. Companion files seen before
// the first ASL document are dropped.
func GroupFiles(files []File) ([]Group, error) {
	var groups []Group
	var current *Group
	for _, f := range files {
		kind := classify(f.Name)
		if kind == kindOther {
			return nil, fmt.Errorf("%w: Invalid file: %s", ErrInvalidFile, f.Name)
		}
		switch kind {
		case kindASL:
			s, err := decodeJSON(f)
			if err != nil {
				return nil, err
			}
			if current != nil {
				groups = append(groups, *current)
			}
			current = &Group{ASL: s}
		case kindM0:
			s, err := decodeJSON(f)
			if err != nil {
				return nil, err
			}
			if current != nil {
				current.M0 = s
			}
		case kindContext:
			volumes, err := ReadContext(bytes.NewReader(f.Data))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			if current != nil {
				current.Context = &Context{Source: f.Name, Volumes: volumes}
			}
		case kindJSON:
			// Other JSON documents are accepted but carry no session.
			if _, err := decodeJSON(f); err != nil {
				return nil, err
			}
		}
	}
	if current != nil {
		groups = append(groups, *current)
	}
	return groups, nil
}

// ReadContext reads an aslcontext TSV. The header must be exactly
// volume_type; blank lines are skipped.
func ReadContext(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read tsv: %w", err)
		}
		return nil, fmt.Errorf("%w: Invalid TSV header, not %q", ErrInvalidFile, ContextHeader)
	}
	if strings.TrimSpace(scanner.Text()) != ContextHeader {
		return nil, fmt.Errorf("%w: Invalid TSV header, not %q", ErrInvalidFile, ContextHeader)
	}
	var volumes []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		volumes = append(volumes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tsv: %w", err)
	}
	return volumes, nil
}

type fileKind int

const (
	kindOther fileKind = iota
	kindASL
	kindM0
	kindContext
	kindJSON
)

func classify(name string) fileKind {
	switch {
	case strings.HasSuffix(name, "asl.json"):
		return kindASL
	case strings.HasSuffix(name, "m0scan.json"):
		return kindM0
	case strings.HasSuffix(name, ".tsv"):
		return kindContext
	case strings.HasSuffix(name, ".json"):
		return kindJSON
	}
	return kindOther
}

func decodeJSON(f File) (*session.Session, error) {
	s, err := session.DecodeBytes(f.Name, f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	return s, nil
}
