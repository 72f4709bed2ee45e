package gremlin

import (
	"fmt"
	"strings"
)

// RuntimeCalls lists every entry point runtime.groovy defines. The
// script validator rejects db calls outside this set.
var RuntimeCalls = []string{
	"createVertex",
	"createEdge",
	"deleteVertex",
	"deleteEdge",
	"addProperty",
	"deleteProperty",
	"alterProperty",
	"renameProperty",
	"createUnique",
	"deleteUnique",
	"createIndex",
	"deleteIndex",
	"updateIndex",
}

// Assemble joins fragments with blank lines under a header naming the
// migration. Generated scripts may be hand-edited before they are
// applied; the validator checks them either way.
func Assemble(version, name, direction string, fragments []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Migration %s_%s (%s)\n", version, name, direction)
	b.WriteString("// Generated by gfm. Review, and edit if needed, before applying.\n")
	for _, fragment := range fragments {
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(fragment, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
