package validator

import (
	"fmt"
	"strings"

	"github.com/go-drift/declui/pkg/errors"
)

// Severity classifies a result. Results at Error or above make a document
// invalid.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	for sev := Info; sev <= Critical; sev++ {
		if strings.EqualFold(s, sev.String()) {
			return sev, nil
		}
	}
	return Info, fmt.Errorf("unknown severity %q", s)
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText is the inverse of MarshalText.
func (s *Severity) UnmarshalText(b []byte) error {
	sev, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = sev
	return nil
}

// Result is the outcome of one rule at one location.
type Result struct {
	Valid    bool     `json:"valid"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Path     string   `json:"path"`
	Rule     string   `json:"rule"`
}

func (r Result) String() string {
	return fmt.Sprintf("%s %s: %s (%s)", r.Severity, r.Path, r.Message, r.Rule)
}

// Report is the ordered list of results of one validation.
type Report struct {
	Results []Result
}

// Valid reports whether no result is at Error or above.
func (r *Report) Valid() bool {
	for _, res := range r.Results {
		if res.Severity >= Error {
			return false
		}
	}
	return true
}

func (r *Report) filter(keep func(Result) bool) []Result {
	var out []Result
	for _, res := range r.Results {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}

// BySeverity returns results at min or above.
func (r *Report) BySeverity(min Severity) []Result {
	return r.filter(func(res Result) bool { return res.Severity >= min })
}

// Errors returns results at Error or above.
func (r *Report) Errors() []Result { return r.BySeverity(Error) }

// Warnings returns results at exactly Warning.
func (r *Report) Warnings() []Result {
	return r.filter(func(res Result) bool { return res.Severity == Warning })
}

// ByPath returns results whose path is prefix or lies below it.
func (r *Report) ByPath(prefix string) []Result {
	return r.filter(func(res Result) bool {
		if !strings.HasPrefix(res.Path, prefix) {
			return false
		}
		rest := res.Path[len(prefix):]
		return rest == "" || rest[0] == '.' || rest[0] == '['
	})
}

// ByRule returns results produced by the named rule.
func (r *Report) ByRule(name string) []Result {
	return r.filter(func(res Result) bool { return res.Rule == name })
}

// Summary returns a one-line count per severity.
func (r *Report) Summary() string {
	var counts [Critical + 1]int
	for _, res := range r.Results {
		counts[res.Severity]++
	}
	verdict := "valid"
	if !r.Valid() {
		verdict = "invalid"
	}
	return fmt.Sprintf("%s: %d critical, %d errors, %d warnings, %d info",
		verdict, counts[Critical], counts[Error], counts[Warning], counts[Info])
}

// Err returns the results at Error or above as validation errors, or nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Errors() {
		errs = append(errs, errors.Newf(errors.KindJSONValidation, "validator."+res.Rule, "%s", res.Message).At(res.Path))
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}
