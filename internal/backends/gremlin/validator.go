package gremlin

import (
	"fmt"
	"strings"

	"github.com/toolsascode/gfm/internal/backends"
	runtime "github.com/toolsascode/gfm/internal/gremlin"
)

// ScriptValidator checks generated (or hand-edited) migration scripts
// before they reach the server: strings and brackets must balance, the
// script must contain code, and every db call must exist in the
// runtime. Failing fast here beats a half-applied migration.
type ScriptValidator struct {
	known map[string]bool
}

// NewScriptValidator creates a validator bound to the runtime's API
func NewScriptValidator() *ScriptValidator {
	known := make(map[string]bool, len(runtime.RuntimeCalls))
	for _, call := range runtime.RuntimeCalls {
		known[call] = true
	}
	return &ScriptValidator{known: known}
}

// ValidateMigration validates both directions of a migration. A missing
// down script is legal; rollback refuses it at run time.
func (v *ScriptValidator) ValidateMigration(m *backends.MigrationScript) []error {
	var errs []error
	for _, err := range v.Validate(m.UpScript) {
		errs = append(errs, fmt.Errorf("%s: up script: %w", m.ID(), err))
	}
	if strings.TrimSpace(m.DownScript) != "" {
		for _, err := range v.Validate(m.DownScript) {
			errs = append(errs, fmt.Errorf("%s: down script: %w", m.ID(), err))
		}
	}
	return errs
}

// Validate returns every problem found in one script
func (v *ScriptValidator) Validate(script string) []error {
	var errs []error
	s := newScanner(script)

	hasCode := false
	var calls []runtimeCall
	for s.next() {
		if s.state == stateCode && !s.isSpace() {
			hasCode = true
		}
		if call, ok := s.runtimeCall(); ok {
			calls = append(calls, call)
		}
	}

	if !hasCode {
		errs = append(errs, fmt.Errorf("script has no statements"))
	}
	errs = append(errs, s.balanceErrors()...)
	for _, call := range calls {
		if !v.known[call.name] {
			errs = append(errs, fmt.Errorf("unknown runtime call db.%s on line %d", call.name, call.line))
		}
	}
	return errs
}

type scanState int

const (
	stateCode scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateLineComment
)

type runtimeCall struct {
	name string
	line int
}

type bracket struct {
	char byte
	line int
}

// scanner walks a script byte-wise, tracking quotes, comments, bracket
// nesting and line numbers
type scanner struct {
	src       string
	pos       int
	line      int
	state     scanState
	quoteLine int
	stack     []bracket
	errs      []error
}

func newScanner(src string) *scanner {
	return &scanner{src: src, pos: -1, line: 1}
}

func (s *scanner) cur() byte { return s.src[s.pos] }

func (s *scanner) isSpace() bool {
	c := s.cur()
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (s *scanner) peek() byte {
	if s.pos+1 < len(s.src) {
		return s.src[s.pos+1]
	}
	return 0
}

// next advances one byte and updates the scan state
func (s *scanner) next() bool {
	s.pos++
	if s.pos >= len(s.src) {
		return false
	}
	c := s.cur()
	if c == '\n' {
		s.line++
		if s.state == stateLineComment {
			s.state = stateCode
		}
		return true
	}

	switch s.state {
	case stateSingleQuote, stateDoubleQuote:
		if c == '\\' {
			s.pos++ // skip the escaped byte
			if s.pos < len(s.src) && s.cur() == '\n' {
				s.line++
			}
		} else if (c == '\'' && s.state == stateSingleQuote) || (c == '"' && s.state == stateDoubleQuote) {
			s.state = stateCode
		}
	case stateLineComment:
		// consumed until newline
	case stateCode:
		switch {
		case c == '/' && s.peek() == '/':
			s.state = stateLineComment
		case c == '\'':
			s.state = stateSingleQuote
			s.quoteLine = s.line
		case c == '"':
			s.state = stateDoubleQuote
			s.quoteLine = s.line
		case c == '(' || c == '[' || c == '{':
			s.stack = append(s.stack, bracket{char: c, line: s.line})
		case c == ')' || c == ']' || c == '}':
			s.closeBracket(c)
		}
	}
	return true
}

func (s *scanner) closeBracket(c byte) {
	if len(s.stack) == 0 {
		s.errs = append(s.errs, fmt.Errorf("unmatched %q on line %d", string(c), s.line))
		return
	}
	open := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if pairOf(open.char) != c {
		s.errs = append(s.errs, fmt.Errorf("%q opened on line %d closed by %q on line %d",
			string(open.char), open.line, string(c), s.line))
	}
}

func pairOf(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

// runtimeCall reports a db.<name>( sequence starting at the current
// position, in code state only
func (s *scanner) runtimeCall() (runtimeCall, bool) {
	if s.state != stateCode || s.cur() != 'd' {
		return runtimeCall{}, false
	}
	rest := s.src[s.pos:]
	if len(rest) < 4 || rest[:3] != "db." {
		return runtimeCall{}, false
	}
	// Reject identifiers merely ending in "db".
	if s.pos > 0 && isIdent(s.src[s.pos-1]) {
		return runtimeCall{}, false
	}
	i := 3
	for i < len(rest) && isIdent(rest[i]) {
		i++
	}
	name := rest[3:i]
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	if name == "" || i >= len(rest) || rest[i] != '(' {
		return runtimeCall{}, false
	}
	return runtimeCall{name: name, line: s.line}, true
}

func isIdent(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// balanceErrors reports everything still open at end of script
func (s *scanner) balanceErrors() []error {
	errs := s.errs
	if s.state == stateSingleQuote || s.state == stateDoubleQuote {
		errs = append(errs, fmt.Errorf("unterminated string starting on line %d", s.quoteLine))
	}
	for _, open := range s.stack {
		errs = append(errs, fmt.Errorf("unclosed %q opened on line %d", string(open.char), open.line))
	}
	return errs
}
