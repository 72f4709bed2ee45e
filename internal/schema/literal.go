package schema

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Literal is a typed scalar: a declared property default or a one-off
// value entered while resolving a null conflict. Values are one of
// string, int64, float64, bool or time.Time.
type Literal struct {
	value interface{}
}

// NewLiteral wraps a scalar value, normalizing integer widths
func NewLiteral(value interface{}) (Literal, error) {
	switch v := value.(type) {
	case string:
		return Literal{value: v}, nil
	case bool:
		return Literal{value: v}, nil
	case int:
		return Literal{value: int64(v)}, nil
	case int32:
		return Literal{value: int64(v)}, nil
	case int64:
		return Literal{value: v}, nil
	case uint64:
		return Literal{value: int64(v)}, nil
	case float32:
		return Literal{value: float64(v)}, nil
	case float64:
		return Literal{value: v}, nil
	case time.Time:
		return Literal{value: v}, nil
	default:
		return Literal{}, fmt.Errorf("unsupported literal type %T", value)
	}
}

// MustLiteral is NewLiteral for values known valid at compile time
func MustLiteral(value interface{}) Literal {
	l, err := NewLiteral(value)
	if err != nil {
		panic(err)
	}
	return l
}

// ParseLiteral parses a single YAML scalar, so `42`, `4.2`, `true`,
// `hello`, `'quoted'` and `2026-01-02T15:04:05Z` all produce the type
// they read as
func ParseLiteral(input string) (Literal, error) {
	var raw interface{}
	if err := yaml.Unmarshal([]byte(input), &raw); err != nil {
		return Literal{}, fmt.Errorf("not a valid YAML scalar: %w", err)
	}
	switch raw.(type) {
	case map[string]interface{}, []interface{}:
		return Literal{}, fmt.Errorf("value must be a scalar, got %T", raw)
	case nil:
		return Literal{}, fmt.Errorf("value must not be null")
	}
	return NewLiteral(raw)
}

// Value returns the underlying scalar
func (l Literal) Value() interface{} {
	return l.value
}

// Equal compares two literals by type and value
func (l Literal) Equal(other Literal) bool {
	if lt, ok := l.value.(time.Time); ok {
		ot, ok2 := other.value.(time.Time)
		return ok2 && lt.Equal(ot)
	}
	return l.value == other.value
}

// String renders the literal for console output
func (l Literal) String() string {
	switch v := l.value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// UnmarshalYAML accepts any scalar node
func (l *Literal) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch raw.(type) {
	case map[string]interface{}, []interface{}:
		return fmt.Errorf("line %d: default must be a scalar", node.Line)
	case nil:
		return fmt.Errorf("line %d: default must not be null", node.Line)
	}
	parsed, err := NewLiteral(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*l = parsed
	return nil
}

// MarshalYAML writes the scalar back out
func (l Literal) MarshalYAML() (interface{}, error) {
	if t, ok := l.value.(time.Time); ok {
		return t.UTC().Format(time.RFC3339), nil
	}
	return l.value, nil
}
