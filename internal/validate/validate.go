// Package validate collects configuration problems so they can be reported together.
package validate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var labelPattern = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

type Validator struct{ errors []string }

func (v *Validator) AddError(format string, args ...interface{}) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}
func (v *Validator) HasErrors() bool  { return len(v.errors) > 0 }
func (v *Validator) Errors() []string { return v.errors }

// Err joins every collected problem into one error wrapping base, or returns nil.
func (v *Validator) Err(base error) error {
	if !v.HasErrors() {
		return nil
	}
	if len(v.errors) == 1 {
		return fmt.Errorf("%w: %s", base, v.errors[0])
	}
	return fmt.Errorf("%w:\n%s", base, strings.Join(v.errors, "\n"))
}

// IsWebSocketURL reports whether s is an absolute ws:// or wss:// URL with a host.
func IsWebSocketURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "ws" || u.Scheme == "wss") && u.Host != ""
}

func IsAlphanumericWithDashes(s string) bool {
	if s == "" {
		return false
	}
	return labelPattern.MatchString(s)
}
