package schema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRules []byte

type document struct {
	Major       []fieldDoc                `yaml:"major"`
	Required    []fieldDoc                `yaml:"required"`
	Recommended []fieldDoc                `yaml:"recommended"`
	Consistency map[string]consistencyDoc `yaml:"consistency"`
}

type fieldDoc struct {
	Name            string    `yaml:"name"`
	Type            string    `yaml:"type"`
	Aliases         []string  `yaml:"aliases"`
	When            Condition `yaml:"when"`
	Integer         bool      `yaml:"integer"`
	MinError        *float64  `yaml:"min_error"`
	MaxError        *float64  `yaml:"max_error"`
	MinErrorInclude *float64  `yaml:"min_error_include"`
	MaxErrorInclude *float64  `yaml:"max_error_include"`
	MinWarning      *float64  `yaml:"min_warning"`
	MaxWarning      *float64  `yaml:"max_warning"`
	Size            *int      `yaml:"size"`
	Ascending       bool      `yaml:"ascending"`
	Allowed         []string  `yaml:"allowed"`
}

type consistencyDoc struct {
	Compare          string   `yaml:"compare"`
	Major            bool     `yaml:"major"`
	ErrorTolerance   *float64 `yaml:"error_tolerance"`
	WarningTolerance *float64 `yaml:"warning_tolerance"`
}

// Default returns the built-in rule tables.
func Default() (*Tables, error) {
	return Parse(defaultRules)
}

// DefaultYAML returns the built-in rule document.
func DefaultYAML() []byte {
	return bytes.Clone(defaultRules)
}

// Load reads rule tables from a YAML file. An empty path yields the
// built-in tables.
func Load(path string) (*Tables, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	tables, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// Parse decodes and compiles a rule document.
func Parse(data []byte) (*Tables, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}

	tables := &Tables{Consistency: make(map[string]ConsistencyRule, len(doc.Consistency))}
	seen := make(map[string]Tier)
	var errs []error
	compileTier := func(tier Tier, docs []fieldDoc) []FieldRule {
		rules := make([]FieldRule, 0, len(docs))
		for _, fd := range docs {
			rule, err := fd.compile(tier == TierMajor)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", tier, err))
				continue
			}
			if prev, dup := seen[rule.Name]; dup {
				errs = append(errs, fmt.Errorf("%s: field %s already declared in %s", tier, rule.Name, prev))
				continue
			}
			seen[rule.Name] = tier
			rules = append(rules, rule)
		}
		return rules
	}
	tables.Major = compileTier(TierMajor, doc.Major)
	tables.Required = compileTier(TierRequired, doc.Required)
	tables.Recommended = compileTier(TierRecommended, doc.Recommended)

	for name, cd := range doc.Consistency {
		rule, err := cd.compile()
		if err != nil {
			errs = append(errs, fmt.Errorf("consistency.%s: %w", name, err))
			continue
		}
		tables.Consistency[name] = rule
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return tables, nil
}

func (fd fieldDoc) compile(major bool) (FieldRule, error) {
	name := strings.TrimSpace(fd.Name)
	if name == "" {
		return FieldRule{}, errors.New("field name is required")
	}
	shape := Shape(strings.TrimSpace(fd.Type))
	if !shape.valid() {
		return FieldRule{}, fmt.Errorf("field %s: unknown type %q", name, fd.Type)
	}
	rule := FieldRule{
		Name:    name,
		Shape:   shape,
		Aliases: fd.Aliases,
		When:    fd.When,
		Major:   major,
	}

	var errChecks, warnChecks []Check
	numeric := shape == ShapeNumber || shape == ShapeNumberArray || shape == ShapeNumberOrArray
	if fd.Size != nil {
		if shape != ShapeNumberArray && shape != ShapeNumberOrArray {
			return FieldRule{}, fmt.Errorf("field %s: size requires an array type", name)
		}
		errChecks = append(errChecks, Check{Op: OpSize, Size: *fd.Size})
	}
	if fd.Integer {
		if !numeric {
			return FieldRule{}, fmt.Errorf("field %s: integer requires a numeric type", name)
		}
		errChecks = append(errChecks, Check{Op: OpInteger})
	}
	bounds := []struct {
		value *float64
		op    Op
	}{
		{fd.MinError, OpGT},
		{fd.MaxError, OpLT},
		{fd.MinErrorInclude, OpGE},
		{fd.MaxErrorInclude, OpLE},
	}
	for _, b := range bounds {
		if b.value == nil {
			continue
		}
		if !numeric {
			return FieldRule{}, fmt.Errorf("field %s: bound %s requires a numeric type", name, b.op)
		}
		errChecks = append(errChecks, Check{Op: b.op, Threshold: *b.value})
	}
	if fd.Ascending {
		if shape != ShapeNumberArray && shape != ShapeNumberOrArray {
			return FieldRule{}, fmt.Errorf("field %s: ascending requires an array type", name)
		}
		errChecks = append(errChecks, Check{Op: OpAscending})
	}
	if len(fd.Allowed) > 0 {
		if shape != ShapeString {
			return FieldRule{}, fmt.Errorf("field %s: allowed requires type string", name)
		}
		errChecks = append(errChecks, Check{Op: OpOneOf, Allowed: append([]string(nil), fd.Allowed...)})
	}
	if fd.MinWarning != nil {
		warnChecks = append(warnChecks, Check{Op: OpWarnGT, Threshold: *fd.MinWarning})
	}
	if fd.MaxWarning != nil {
		warnChecks = append(warnChecks, Check{Op: OpWarnLT, Threshold: *fd.MaxWarning})
	}
	if len(warnChecks) > 0 && !numeric {
		return FieldRule{}, fmt.Errorf("field %s: warning bounds require a numeric type", name)
	}

	if major {
		rule.Majors = errChecks
	} else {
		rule.Errors = errChecks
	}
	rule.Warnings = warnChecks
	return rule, nil
}

func (cd consistencyDoc) compile() (ConsistencyRule, error) {
	compare := Compare(strings.TrimSpace(cd.Compare))
	switch compare {
	case CompareString, CompareBoolean:
		if cd.ErrorTolerance != nil || cd.WarningTolerance != nil {
			return ConsistencyRule{}, fmt.Errorf("tolerances apply to numeric comparisons only")
		}
	case CompareNumeric:
		if cd.ErrorTolerance != nil && *cd.ErrorTolerance < 0 {
			return ConsistencyRule{}, errors.New("error_tolerance must be >= 0")
		}
		if cd.WarningTolerance != nil && *cd.WarningTolerance < 0 {
			return ConsistencyRule{}, errors.New("warning_tolerance must be >= 0")
		}
		if cd.ErrorTolerance != nil && cd.WarningTolerance != nil && *cd.WarningTolerance > *cd.ErrorTolerance {
			return ConsistencyRule{}, errors.New("warning_tolerance must not exceed error_tolerance")
		}
	default:
		return ConsistencyRule{}, fmt.Errorf("unknown compare kind %q", cd.Compare)
	}
	return ConsistencyRule{
		Compare:          compare,
		Major:            cd.Major,
		ErrorTolerance:   cd.ErrorTolerance,
		WarningTolerance: cd.WarningTolerance,
	}, nil
}
