package gremlin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/toolsascode/gfm/internal/schema"
)

// typeTokens maps schema property types to the runtime's type names.
// The mapping is injective so rendered definitions stay comparable.
var typeTokens = map[string]string{
	schema.TypeString:   "String",
	schema.TypeText:     "Text",
	schema.TypeInteger:  "Integer",
	schema.TypeLong:     "Long",
	schema.TypeFloat:    "Float",
	schema.TypeDouble:   "Double",
	schema.TypeBoolean:  "Boolean",
	schema.TypeDatetime: "Date",
	schema.TypeUUID:     "UUID",
}

// TypeToken returns the runtime type name for a schema property type
func TypeToken(propertyType string) string {
	if token, ok := typeTokens[propertyType]; ok {
		return token
	}
	return propertyType
}

// quote renders a Groovy single-quoted string
func quote(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}

// quoteList renders a Groovy list of single-quoted strings
func quoteList(items []string) string {
	quoted := make([]string, 0, len(items))
	for _, item := range items {
		quoted = append(quoted, quote(item))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// RenderLiteral renders a literal as a Groovy expression. Floats keep a
// decimal point so they do not read back as integers; times render as a
// quoted RFC3339 string the runtime parses.
func RenderLiteral(l schema.Literal) string {
	switch v := l.Value().(type) {
	case string:
		return quote(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case time.Time:
		return quote(v.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%v", v)
	}
}

// PropertyDef renders a property definition as a Groovy map with stable
// key order, so two definitions are equal exactly when their renderings
// are
func PropertyDef(p *schema.Property) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[type: %s, cardinality: %s, required: %v, blank: %v",
		quote(TypeToken(p.Type)), quote(p.Cardinality), p.Required, p.Blank)
	if p.HasDefault() {
		fmt.Fprintf(&b, ", default: %s", RenderLiteral(*p.Default))
	}
	b.WriteString("]")
	return b.String()
}
