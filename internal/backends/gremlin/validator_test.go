package gremlin

import (
	"strings"
	"testing"

	"github.com/toolsascode/gfm/internal/backends"
)

func TestScriptValidator_Validate(t *testing.T) {
	validator := NewScriptValidator()

	t.Run("valid generated script", func(t *testing.T) {
		script := `// Migration 20260102150405_add_person (up)
// Generated by gfm. Review, and edit if needed, before applying.

// Adding vertex 'Person'
db.createVertex('person', [
    ['email', [type: 'String', cardinality: 'single', required: true, blank: false]],
])

// Adding unique constraint on 'Person', fields [email]
db.createUnique('person', ['email'])
`
		errors := validator.Validate(script)
		if len(errors) > 0 {
			t.Errorf("Expected no errors, got %v", errors)
		}
	})

	t.Run("comments only", func(t *testing.T) {
		errors := validator.Validate("// Migration header\n// nothing else\n")
		if len(errors) != 1 || !strings.Contains(errors[0].Error(), "no statements") {
			t.Errorf("Expected a no-statements error, got %v", errors)
		}
	})

	t.Run("unterminated string", func(t *testing.T) {
		errors := validator.Validate("db.deleteVertex('person)\n")
		found := false
		for _, err := range errors {
			if strings.Contains(err.Error(), "unterminated string starting on line 1") {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected an unterminated string error, got %v", errors)
		}
	})

	t.Run("escaped quote does not close the string", func(t *testing.T) {
		errors := validator.Validate(`db.deleteVertex('it\'s fine')` + "\n")
		if len(errors) > 0 {
			t.Errorf("Expected no errors, got %v", errors)
		}
	})

	t.Run("unclosed bracket", func(t *testing.T) {
		errors := validator.Validate("db.createUnique('person', ['email'\n")
		found := false
		for _, err := range errors {
			if strings.Contains(err.Error(), `unclosed "["`) {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected an unclosed bracket error, got %v", errors)
		}
	})

	t.Run("mismatched brackets", func(t *testing.T) {
		errors := validator.Validate("db.deleteVertex('person']\n")
		if len(errors) == 0 {
			t.Error("Expected a bracket mismatch error")
		}
	})

	t.Run("unmatched closer", func(t *testing.T) {
		errors := validator.Validate("db.deleteVertex('person'))\n")
		found := false
		for _, err := range errors {
			if strings.Contains(err.Error(), `unmatched ")" on line 1`) {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected an unmatched closer error, got %v", errors)
		}
	})

	t.Run("unknown runtime call", func(t *testing.T) {
		errors := validator.Validate("db.truncateEverything('person')\n")
		found := false
		for _, err := range errors {
			if strings.Contains(err.Error(), "unknown runtime call db.truncateEverything on line 1") {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected an unknown call error, got %v", errors)
		}
	})

	t.Run("db call inside string or comment is ignored", func(t *testing.T) {
		script := "// db.bogus() in a comment\ndb.deleteVertex('db.alsoBogus(x)')\n"
		errors := validator.Validate(script)
		if len(errors) > 0 {
			t.Errorf("Expected no errors, got %v", errors)
		}
	})

	t.Run("identifier ending in db is not a runtime call", func(t *testing.T) {
		errors := validator.Validate("mydb.whatever('x')\ndb.deleteVertex('person')\n")
		if len(errors) > 0 {
			t.Errorf("Expected no errors, got %v", errors)
		}
	})

	t.Run("irreversible guard validates", func(t *testing.T) {
		script := `// Cannot reverse this migration. 'Person.ssn' and its values cannot be restored.
throw new IllegalStateException("Cannot reverse this migration. 'Person.ssn' and its values cannot be restored.")
// The statements below are provided to aid in writing a correct migration
db.addProperty('person', 'ssn', [type: 'String', cardinality: 'single', required: true, blank: false], false)
`
		errors := validator.Validate(script)
		if len(errors) > 0 {
			t.Errorf("Expected no errors, got %v", errors)
		}
	})
}

func TestScriptValidator_ValidateMigration(t *testing.T) {
	validator := NewScriptValidator()

	migration := &backends.MigrationScript{
		Version:    "20260102150405",
		Name:       "add_person",
		Graph:      "core",
		UpScript:   "db.createVertex('person', [])\n",
		DownScript: "db.dropEverything('person')\n",
	}

	errors := validator.ValidateMigration(migration)
	if len(errors) != 1 {
		t.Fatalf("Expected exactly one error, got %v", errors)
	}
	if !strings.Contains(errors[0].Error(), "20260102150405_add_person_core: down script:") {
		t.Errorf("Expected the error to name the migration and direction, got %v", errors[0])
	}
}

func TestScriptValidator_ValidateMigration_NoDownScript(t *testing.T) {
	validator := NewScriptValidator()

	migration := &backends.MigrationScript{
		Version:  "20260102150405",
		Name:     "add_person",
		Graph:    "core",
		UpScript: "db.createVertex('person', [])\n",
	}

	if errors := validator.ValidateMigration(migration); len(errors) > 0 {
		t.Errorf("Expected no errors for a migration without a down script, got %v", errors)
	}
}
