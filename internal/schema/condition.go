package schema

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"aslreport/internal/session"
)

// Term requires one gating field to hold one of the accepted values.
type Term struct {
	Field  string
	Accept []session.Value
}

// Condition scopes an obligation to sessions whose other fields match. A
// condition with no terms always applies.
type Condition struct {
	Terms []Term
}

// Always is the condition that applies to every session.
var Always = Condition{}

// When builds a single-term condition.
func When(field string, accept ...session.Value) Condition {
	return Condition{Terms: []Term{{Field: field, Accept: accept}}}
}

// IsAlways reports whether the condition has no terms.
func (c Condition) IsAlways() bool { return len(c.Terms) == 0 }

// Applies reports whether every gating field is present in s and matches
// one of its accepted values. A missing gating field never matches.
func (c Condition) Applies(s *session.Session) bool {
	for _, term := range c.Terms {
		value, ok := s.Get(term.Field)
		if !ok {
			return false
		}
		matched := false
		for _, accepted := range term.Accept {
			if value.Equal(accepted) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func (c Condition) String() string {
	if c.IsAlways() {
		return "always"
	}
	parts := make([]string, 0, len(c.Terms))
	for _, term := range c.Terms {
		if len(term.Accept) == 1 {
			parts = append(parts, term.Field+" = "+term.Accept[0].String())
			continue
		}
		values := make([]string, len(term.Accept))
		for i, v := range term.Accept {
			values[i] = v.String()
		}
		parts = append(parts, term.Field+" in ["+strings.Join(values, ", ")+"]")
	}
	return strings.Join(parts, " and ")
}

// UnmarshalYAML accepts "always" (or "all") and a mapping from gating field
// to a scalar or a sequence of scalars.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch strings.ToLower(strings.TrimSpace(node.Value)) {
		case "", "always", "all":
			*c = Always
			return nil
		}
		return fmt.Errorf("line %d: unknown condition %q", node.Line, node.Value)
	case yaml.MappingNode:
		var terms []Term
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			term := Term{Field: key.Value}
			switch val.Kind {
			case yaml.ScalarNode:
				v, err := scalarValue(val)
				if err != nil {
					return err
				}
				term.Accept = []session.Value{v}
			case yaml.SequenceNode:
				for _, item := range val.Content {
					v, err := scalarValue(item)
					if err != nil {
						return err
					}
					term.Accept = append(term.Accept, v)
				}
			default:
				return fmt.Errorf("line %d: condition on %s must be a scalar or list", val.Line, key.Value)
			}
			if len(term.Accept) == 0 {
				return fmt.Errorf("line %d: condition on %s accepts no values", val.Line, key.Value)
			}
			terms = append(terms, term)
		}
		*c = Condition{Terms: terms}
		return nil
	}
	return fmt.Errorf("line %d: condition must be a string or mapping", node.Line)
}

func scalarValue(node *yaml.Node) (session.Value, error) {
	if node.Kind != yaml.ScalarNode {
		return session.Value{}, fmt.Errorf("line %d: expected scalar", node.Line)
	}
	switch node.ShortTag() {
	case "!!bool":
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			return session.Value{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return session.Bool(b), nil
	case "!!int":
		i, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return session.Value{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return session.Int(i), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return session.Value{}, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return session.Number(f), nil
	default:
		return session.String(node.Value), nil
	}
}
