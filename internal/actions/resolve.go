package actions

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/toolsascode/gfm/internal/schema"
)

// ErrAborted is returned when the user quits out of conflict resolution
var ErrAborted = errors.New("aborted by user")

// Conflict reasons shown in the prompt
const (
	ReasonAddingField   = "adding this field"
	ReasonRemovingField = "removing this field"
	ReasonNonNullable   = "making this field non-nullable"
	ReasonNullable      = "making this field nullable"
)

// NullConflict describes a required field with no default: the migration
// needs a value for elements that already exist. When BackwardIssue is
// set the missing value is needed by the backward migration and the user
// may choose to disable it instead.
type NullConflict struct {
	Model         *schema.Model
	Field         *schema.Property
	Reason        string
	BackwardIssue bool
}

// Resolution is the outcome of resolving a null conflict
type Resolution struct {
	// Default is a one-off value backfilled onto existing elements;
	// it is not kept as a schema default.
	Default *schema.Literal
	// Irreversible disables the backward migration with a raising guard.
	Irreversible bool
}

// Resolver decides what to do about a null conflict
type Resolver interface {
	ResolveNullConflict(c *NullConflict) (Resolution, error)
}

// resolveConflict applies the automatic blank-string rule, then defers
// to the resolver. Returns the property to render (cloned when a
// default was attached) and the irreversible flag.
func resolveConflict(m *schema.Model, field *schema.Property, reason string, backwardIssue bool, r Resolver) (*schema.Property, bool, error) {
	// Blank string kinds default to "" without asking.
	if schema.IsStringKind(field.Type) && field.Blank {
		field = field.Clone()
		lit := schema.MustLiteral("")
		field.Default = &lit
		return field, false, nil
	}
	if r == nil {
		r = StaticResolver{}
	}
	res, err := r.ResolveNullConflict(&NullConflict{
		Model:         m,
		Field:         field,
		Reason:        reason,
		BackwardIssue: backwardIssue,
	})
	if err != nil {
		return nil, false, err
	}
	if res.Default != nil {
		field = field.Clone()
		field.Default = res.Default
	}
	return field, res.Irreversible, nil
}

// StaticResolver refuses every conflict; it backs non-interactive runs
type StaticResolver struct{}

// ResolveNullConflict returns an error telling the user how to proceed
func (StaticResolver) ResolveNullConflict(c *NullConflict) (Resolution, error) {
	return Resolution{}, fmt.Errorf(
		"the field '%s.%s' is required and has no default while %s; add a default to the model definition or run interactively",
		c.Model.ClassName, c.Field.Name, c.Reason)
}

// PromptResolver walks the user through the resolution choices
type PromptResolver struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPromptResolver reads choices from in and writes prompts to out
func NewPromptResolver(in io.Reader, out io.Writer) *PromptResolver {
	return &PromptResolver{in: bufio.NewScanner(in), out: out}
}

// ResolveNullConflict prompts until a valid choice is made:
//
//	1 quits, 2 asks for a one-off value, 3 (backward issues only)
//	marks the backward migration irreversible.
func (r *PromptResolver) ResolveNullConflict(c *NullConflict) (Resolution, error) {
	fmt.Fprintf(r.out, " ? The field '%s.%s' does not have a default specified, yet is NOT NULL.\n",
		c.Model.ClassName, c.Field.Name)
	fmt.Fprintf(r.out, " ? Since you are %s, you MUST specify a default\n", c.Reason)
	fmt.Fprintln(r.out, " ? value to use for existing rows. Would you like to:")
	if c.BackwardIssue {
		fmt.Fprintln(r.out, " ?  1. Quit now.")
	} else {
		fmt.Fprintln(r.out, " ?  1. Quit now, and add a default to the field in the model definition")
	}
	fmt.Fprintln(r.out, " ?  2. Specify a one-off value to use for existing rows now")
	if c.BackwardIssue {
		fmt.Fprintln(r.out, " ?  3. Disable the backwards migration by raising an exception; you can edit the migration to fix it later")
	}
	for {
		fmt.Fprint(r.out, " ? Please select a choice: ")
		choice, err := r.readLine()
		if err != nil {
			return Resolution{}, err
		}
		switch {
		case choice == "1":
			return Resolution{}, ErrAborted
		case choice == "2":
			lit, err := r.oneOffValue()
			if err != nil {
				return Resolution{}, err
			}
			return Resolution{Default: &lit}, nil
		case choice == "3" && c.BackwardIssue:
			return Resolution{Irreversible: true}, nil
		default:
			fmt.Fprintln(r.out, " ! Invalid choice.")
		}
	}
}

func (r *PromptResolver) oneOffValue() (schema.Literal, error) {
	fmt.Fprintln(r.out, " ? Please enter a YAML literal for your one-off value.")
	fmt.Fprintln(r.out, " ? Timestamps are accepted, e.g. 2026-01-02T15:04:05Z")
	for {
		fmt.Fprint(r.out, " >>> ")
		input, err := r.readLine()
		if err != nil {
			return schema.Literal{}, err
		}
		if input == "" {
			fmt.Fprintln(r.out, " ! Please enter a value, or 'exit' (with no quotes) to exit.")
			continue
		}
		if input == "exit" {
			return schema.Literal{}, ErrAborted
		}
		lit, err := schema.ParseLiteral(input)
		if err != nil {
			fmt.Fprintf(r.out, " ! Invalid input: %v\n", err)
			continue
		}
		return lit, nil
	}
}

// readLine treats closed input as an abort
func (r *PromptResolver) readLine() (string, error) {
	if !r.in.Scan() {
		if err := r.in.Err(); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(r.in.Text()), nil
}
