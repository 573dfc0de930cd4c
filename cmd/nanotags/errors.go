package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/nanotags/nanotags/filter"
	"github.com/arthur-debert/nanotags/nanotags/project"
	"github.com/arthur-debert/nanotags/types"
)

// CLIError is an error with the failed operation and hints for the user
type CLIError struct {
	Operation   string
	Cause       string
	Details     string
	Suggestions []string
	Underlying  error
}

func (e *CLIError) Error() string {
	var msg strings.Builder

	if e.Operation != "" {
		msg.WriteString(fmt.Sprintf("Failed to %s", e.Operation))
	} else {
		msg.WriteString("Operation failed")
	}
	if e.Cause != "" {
		msg.WriteString(fmt.Sprintf(": %s", e.Cause))
	}
	if e.Details != "" {
		msg.WriteString(fmt.Sprintf(" (%s)", e.Details))
	}
	if len(e.Suggestions) > 0 {
		msg.WriteString("\n\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			msg.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}
	return msg.String()
}

func (e *CLIError) Unwrap() error {
	return e.Underlying
}

// NewValidationError reports a bad flag or argument
func NewValidationError(operation, field, value string, suggestions ...string) *CLIError {
	return &CLIError{
		Operation:   operation,
		Cause:       fmt.Sprintf("invalid %s: %q", field, value),
		Suggestions: suggestions,
	}
}

// NewProjectError describes a failure of the project layer, with
// suggestions chosen from the error kind
func NewProjectError(operation string, underlying error) *CLIError {
	e := &CLIError{
		Operation:  operation,
		Cause:      "project operation failed",
		Details:    underlying.Error(),
		Underlying: underlying,
	}

	switch {
	case errors.Is(underlying, project.ErrNotProject):
		e.Cause = "no project found"
		e.Suggestions = []string{
			"Run 'nanotags init' to create a project",
			CommonSuggestions.CheckProject,
		}
	case errors.Is(underlying, project.ErrProjectExists):
		e.Cause = "a project already exists here"
	case errors.Is(underlying, project.ErrFilterNotFound):
		e.Cause = "filter not found"
		e.Suggestions = []string{"Run 'nanotags filter list' to see the saved filters"}
	case errors.Is(underlying, project.ErrFilterName):
		e.Cause = "invalid filter name"
		e.Suggestions = []string{"Filter names cannot be empty or contain path separators"}
	case errors.Is(underlying, filter.ErrMalformedFilter):
		e.Cause = "malformed filter"
		e.Suggestions = []string{
			"Give one --field, --condition and --value per row",
			fmt.Sprintf("Available conditions: %s", strings.Join(conditionNames(), ", ")),
			"Links are AND or OR; negations are NOT or empty",
		}
	case errors.Is(underlying, types.ErrFieldNotFound):
		e.Cause = "unknown tag"
		e.Suggestions = []string{"Run 'nanotags tag list' to see the declared tags"}
	case errors.Is(underlying, types.ErrFieldExists):
		e.Cause = "tag already exists"
	case errors.Is(underlying, types.ErrDocumentExists):
		e.Cause = "scan already exists"
	case errors.Is(underlying, types.ErrInvalidValue):
		e.Cause = "invalid value"
		e.Suggestions = []string{"Run 'nanotags tag show <name>' to check the tag type"}
	case errors.Is(underlying, types.ErrInvalidName):
		e.Cause = "invalid name"
	}
	return e
}

// WrapError wraps err unless it already is a CLIError
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Operation == "" {
			cliErr.Operation = operation
		}
		return cliErr
	}
	return NewProjectError(operation, err)
}

func conditionNames() []string {
	all := filter.Conditions()
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = c.String()
	}
	return names
}

var CommonSuggestions = struct {
	CheckProject string
	CheckConfig  string
	RunHelp      string
}{
	CheckProject: "Verify --project points to a project directory",
	CheckConfig:  "Check your configuration file or environment variables",
	RunHelp:      "Run command with --help for usage information",
}
