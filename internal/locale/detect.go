// Package locale guesses the user's language, region and currency from the
// process environment.
package locale

import (
	"os"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

// Detected is the best guess from the environment. Empty fields are unknown.
type Detected struct {
	Locale   string
	Region   string
	Currency string
}

var envKeys = []string{"LC_ALL", "LC_MESSAGES", "LANG", "LANGUAGE"}

// sanitize turns "en_GB.UTF-8@euro" into "en-GB".
func sanitize(value string) string {
	v := strings.TrimSpace(value)
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	if v == "" || v == "C" || v == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(v, "_", "-")
}

// Candidates lists locale strings from the environment in priority order.
func Candidates(getenv func(string) string) []string {
	seen := map[string]bool{}
	var out []string
	for _, key := range envKeys {
		for _, part := range strings.Split(getenv(key), ":") {
			s := sanitize(part)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Detect inspects the process environment.
func Detect() Detected {
	return DetectFrom(os.Getenv)
}

// DetectFrom is Detect with an injectable environment.
func DetectFrom(getenv func(string) string) Detected {
	var d Detected
	candidates := Candidates(getenv)
	if len(candidates) == 0 {
		return d
	}
	d.Locale = candidates[0]

	tag, err := language.Parse(d.Locale)
	if err != nil {
		return d
	}
	region, confidence := tag.Region()
	if confidence == language.No {
		return d
	}
	d.Region = region.String()

	if unit, ok := currency.FromRegion(region); ok {
		d.Currency = unit.String()
	}
	return d
}
