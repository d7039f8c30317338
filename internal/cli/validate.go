package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nikonych/fliessfertigung/internal/catalog"
	"github.com/nikonych/fliessfertigung/internal/importer"
)

// ValidationError is one problem that makes a catalog file unusable.
type ValidationError struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results. Warnings are catalog issues
// the simulator tolerates.
type ValidationResult struct {
	File     string            `json:"file"`
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <catalog-file>",
		Short: "Validate a catalog file without importing it",
		Long: `Parse a YAML or CUE catalog file and build the catalog from it.

Decode errors, schema violations and structural problems (duplicate ids,
duplicate routing sequences) make the file invalid. Dangling references and
machines without availability window are reported as warnings.

Exit codes:
  0 - Catalog is valid (warnings allowed)
  1 - Catalog is invalid
  2 - Command error (unreadable file, unsupported extension)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	format, err := importer.FormatFromPath(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot validate file", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read catalog file", err)
	}
	formatter.VerboseLog("Validating %s as %s", path, format)

	result := ValidationResult{File: path, Valid: true}

	doc, err := importer.Parse(format, path, data)
	if err == nil {
		var cat *catalog.Catalog
		cat, err = catalog.Load(context.Background(), doc.Source())
		if err == nil {
			for _, is := range cat.Issues() {
				result.Warnings = append(result.Warnings, is.String())
			}
		}
	}
	if err != nil {
		result.Valid = false
		result.Errors = toValidationErrors(err)
	}

	text := func(w io.Writer) {
		for _, e := range result.Errors {
			if e.Line > 0 {
				fmt.Fprintf(w, "✗ line %d: %s\n", e.Line, e.Message)
			} else {
				fmt.Fprintf(w, "✗ %s\n", e.Message)
			}
		}
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "! %s\n", warn)
		}
		if result.Valid {
			fmt.Fprintf(w, "✓ %s is valid\n", path)
		}
	}

	if !result.Valid {
		return formatter.Fail(ExitFailure, ErrCodeCatalog,
			fmt.Sprintf("%s is invalid", path), result, text)
	}
	return formatter.Render(result, text)
}

// toValidationErrors flattens joined errors and keeps decoder positions.
func toValidationErrors(err error) []ValidationError {
	var errs []error
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		ve := ValidationError{Message: e.Error()}
		var ie *importer.ImportError
		if errors.As(e, &ie) && ie.Pos.IsValid() {
			ve.Message = ie.Message
			ve.Line = ie.Pos.Line()
			ve.Column = ie.Pos.Column()
		}
		out = append(out, ve)
	}
	return out
}
