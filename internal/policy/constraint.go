package policy

import (
	"fmt"
	"regexp"
	"strings"
)

// ConstraintType tags the closed set of argument constraint variants.
type ConstraintType string

const (
	TypeString  ConstraintType = "string"
	TypeInteger ConstraintType = "integer"
	TypeEnum    ConstraintType = "enum"
	TypeArray   ConstraintType = "array"
)

// Constraint is one compiled argument constraint. Only the fields matching
// Type are populated; patterns and allowlist references are resolved once at
// load time, never re-parsed per validation call.
type Constraint struct {
	Type     ConstraintType
	Optional bool

	// String bounds.
	MinLength *int
	MaxLength *int
	Pattern   *regexp.Regexp

	// MustBeUnder names a root_paths key the value must resolve under.
	MustBeUnder string

	// Integer bounds.
	Min *int
	Max *int

	// Enum membership. Values is populated either inline or resolved from
	// the named allowlist; ValuesFrom keeps the reference for messages.
	Values     []string
	ValuesFrom string

	// Array element constraint.
	Items *Constraint
}

// rawConstraint is the YAML shape of a constraint before compilation.
type rawConstraint struct {
	Type        string         `yaml:"type"`
	Optional    bool           `yaml:"optional"`
	MinLength   *int           `yaml:"min_length"`
	MaxLength   *int           `yaml:"max_length"`
	Pattern     string         `yaml:"pattern"`
	MustBeUnder string         `yaml:"must_be_under"`
	Min         *int           `yaml:"min"`
	Max         *int           `yaml:"max"`
	Values      []string       `yaml:"values"`
	ValuesFrom  string         `yaml:"values_from"`
	Items       *rawConstraint `yaml:"items"`
}

// compile resolves a raw constraint against the document being loaded.
// Allowlist references take the form "allowlists.<name>".
func (r *rawConstraint) compile(allowlists map[string][]string) (*Constraint, error) {
	c := &Constraint{
		Type:        ConstraintType(r.Type),
		Optional:    r.Optional,
		MinLength:   r.MinLength,
		MaxLength:   r.MaxLength,
		MustBeUnder: r.MustBeUnder,
		Min:         r.Min,
		Max:         r.Max,
		Values:      r.Values,
		ValuesFrom:  r.ValuesFrom,
	}

	if r.Pattern != "" {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", r.Pattern, err)
		}
		c.Pattern = re
	}

	if r.ValuesFrom != "" {
		name := strings.TrimPrefix(r.ValuesFrom, "allowlists.")
		values, ok := allowlists[name]
		if !ok {
			return nil, fmt.Errorf("unknown allowlist reference %q", r.ValuesFrom)
		}
		c.Values = values
	}

	if r.Items != nil {
		items, err := r.Items.compile(allowlists)
		if err != nil {
			return nil, fmt.Errorf("array items: %w", err)
		}
		c.Items = items
	}

	return c, nil
}

func (c *Constraint) validate() error {
	switch c.Type {
	case TypeString, TypeInteger, TypeArray:
	case TypeEnum:
		if len(c.Values) == 0 {
			return fmt.Errorf("enum constraint has no values")
		}
	default:
		return fmt.Errorf("unknown constraint type %q", c.Type)
	}
	return nil
}

// AllowsValue reports whether value is a member of an enum constraint.
func (c *Constraint) AllowsValue(value string) bool {
	for _, v := range c.Values {
		if v == value {
			return true
		}
	}
	return false
}
