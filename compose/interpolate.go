package compose

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Lookup resolves a variable name during interpolation.
type Lookup func(name string) (string, bool)

// MissingVariablesError reports every unresolved variable in one pass so
// the operator fixes the environment once, not one restart at a time.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return fmt.Sprintf("missing required variables: %s", strings.Join(e.Names, ", "))
}

// $$ escape, $VAR, ${VAR}, ${VAR-def} and ${VAR:-def}
var varPattern = regexp.MustCompile(`\$\$|\$([A-Za-z_][A-Za-z0-9_]*)|\$\{([A-Za-z_][A-Za-z0-9_]*)((?::?-)[^}]*)?\}`)

// Interpolate substitutes variable references in manifest bytes before
// parsing. Secrets carry no in-repo defaults: a reference without a
// fallback that resolves to nothing is an error at evaluation time.
func Interpolate(src []byte, lookup Lookup) ([]byte, error) {
	missing := map[string]struct{}{}

	out := varPattern.ReplaceAllStringFunc(string(src), func(match string) string {
		if match == "$$" {
			return "$"
		}

		groups := varPattern.FindStringSubmatch(match)
		name := groups[1]
		if name == "" {
			name = groups[2]
		}
		modifier := groups[3]

		value, ok := lookup(name)
		if strings.HasPrefix(modifier, ":-") {
			if !ok || value == "" {
				return modifier[2:]
			}
			return value
		}
		if strings.HasPrefix(modifier, "-") {
			if !ok {
				return modifier[1:]
			}
			return value
		}
		if !ok {
			missing[name] = struct{}{}
			return ""
		}
		return value
	})

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, &MissingVariablesError{Names: names}
	}

	return []byte(out), nil
}
