package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-drift/declui/pkg/errors"
	"github.com/go-drift/declui/pkg/parser"
	"github.com/go-drift/declui/pkg/validator"
)

func init() {
	RegisterCommand(newValidateCmd)
}

type validateFlags struct {
	strict     bool
	allowExtra bool
	schema     string
	format     string
}

func newValidateCmd(a *app) *cobra.Command {
	var f validateFlags
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check UI documents against the validation rules",
		Long: `Parse each document, expand its references and run the validator.

Every finding is printed with its severity, its path in the document and
the rule that produced it. The command fails when any document has a
parse error or a finding at error severity or above.

A CUE file given with --schema is unified with every component node, in
addition to the builtin rules.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args, f)
		},
	}
	cmd.Flags().BoolVar(&f.strict, "strict", false, "treat warnings as errors")
	cmd.Flags().BoolVar(&f.allowExtra, "allow-additional", false, "report unknown types and members as warnings")
	cmd.Flags().StringVar(&f.schema, "schema", "", "CUE constraint applied to every component node")
	cmd.Flags().StringVar(&f.format, "format", "text", "output format: text or json")
	return cmd
}

// fileReport is the JSON form of one document's findings.
type fileReport struct {
	File    string             `json:"file"`
	Valid   bool               `json:"valid"`
	Errors  []string           `json:"parseErrors,omitempty"`
	Results []validator.Result `json:"results,omitempty"`
	Summary string             `json:"summary,omitempty"`
}

func (a *app) validator(f validateFlags) (*validator.Validator, error) {
	opts := a.cfg.Validator
	opts.Strict = opts.Strict || f.strict
	opts.AllowAdditionalProperties = opts.AllowAdditionalProperties || f.allowExtra
	if f.schema != "" {
		src, err := os.ReadFile(f.schema)
		if err != nil {
			return nil, err
		}
		if _, err := validator.CUE(filepath.Base(f.schema), string(src)); err != nil {
			return nil, err
		}
		opts.Schema = string(src)
	}
	return validator.New(opts).RegisterBuiltins(), nil
}

func (a *app) runValidate(cmd *cobra.Command, files []string, f validateFlags) error {
	if f.format != "text" && f.format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", f.format)
	}
	v, err := a.validator(f)
	if err != nil {
		return err
	}
	p := parser.New(a.cfg.Parser)

	var reports []fileReport
	invalid := 0
	for _, file := range files {
		r := a.validateFile(cmd, p, v, file)
		if !r.Valid {
			invalid++
		}
		reports = append(reports, r)
		if f.format == "text" {
			a.printReport(r)
		}
	}
	if f.format == "json" {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d documents invalid", invalid, len(files))
	}
	return nil
}

func (a *app) validateFile(cmd *cobra.Command, p *parser.Parser, v *validator.Validator, file string) fileReport {
	r := fileReport{File: file}
	data, abs, err := readDocument(file)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		return r
	}
	res := p.ParseContext(cmd.Context(), data, abs)
	for _, w := range res.Warnings {
		errors.WarnAt(w.Op, w.Path, "%s", w.Message)
	}
	for _, e := range res.Errors {
		r.Errors = append(r.Errors, e.Error())
	}
	if !res.OK() {
		return r
	}
	rep := v.Validate(res.Tree)
	r.Results = rep.Results
	r.Summary = rep.Summary()
	r.Valid = rep.Valid()
	return r
}

// readDocument reads file and returns its contents and absolute path.
func readDocument(file string) ([]byte, string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", err
	}
	return data, abs, nil
}

func (a *app) printReport(r fileReport) {
	s := a.styles
	for _, e := range r.Errors {
		fmt.Fprintf(a.out, "%s: %s %s\n", r.File, s.critical.Render("parse error"), e)
	}
	for _, res := range r.Results {
		fmt.Fprintf(a.out, "%s: %s %s %s %s\n",
			r.File,
			s.severity(res.Severity).Render(fmt.Sprintf("%-8s", res.Severity)),
			s.path.Render(res.Path),
			res.Message,
			s.muted.Render("("+res.Rule+")"))
	}
	switch {
	case len(r.Errors) > 0:
	case r.Valid && len(r.Results) == 0:
		fmt.Fprintf(a.out, "%s: %s\n", r.File, s.ok.Render("ok"))
	default:
		fmt.Fprintf(a.out, "%s: %s\n", r.File, r.Summary)
	}
}
