package planner

import (
	"os"
	"regexp"
	"strings"
)

// EnvVarPrefix marks process environment variables that participate in
// pipeline variable resolution: SQLFLOW_VAR_env=prod binds ${env}.
const EnvVarPrefix = "SQLFLOW_VAR_"

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(\|([^}]*))?\}`)

// Substitute replaces ${name} and ${name|default} placeholders in text.
// A bound variable wins over the default; an unbound placeholder with a
// default resolves to the default; an unbound placeholder without one is
// left intact so a later pass (or validation) can flag it.
func Substitute(text string, variables map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name := groups[1]
		if value, ok := variables[name]; ok {
			return value
		}
		if groups[2] != "" {
			return groups[3]
		}
		return match
	})
}

// UnresolvedVariables returns placeholder names in text that have neither
// a binding nor an inline default, in order of first appearance.
func UnresolvedVariables(text string, variables map[string]string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, groups := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := groups[1]
		if groups[2] != "" {
			continue
		}
		if _, ok := variables[name]; ok {
			continue
		}
		if !seen[name] {
			seen[name] = true
			missing = append(missing, name)
		}
	}
	return missing
}

// UnquoteValue strips one pair of surrounding double quotes from a SET
// value, so SET name = "x" binds x, not "x". Unquoted values pass
// through untouched.
func UnquoteValue(value string) string {
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		return value[1 : len(value)-1]
	}
	return value
}

// MergeVariables combines variable bindings with CLI > profile > process
// environment precedence. Environment bindings are read from
// SQLFLOW_VAR_* entries in environ (pass os.Environ()).
func MergeVariables(cli, profile map[string]string, environ []string) map[string]string {
	merged := make(map[string]string)
	for _, entry := range environ {
		if !strings.HasPrefix(entry, EnvVarPrefix) {
			continue
		}
		rest := entry[len(EnvVarPrefix):]
		name, value, ok := strings.Cut(rest, "=")
		if !ok || name == "" {
			continue
		}
		merged[name] = value
	}
	for k, v := range profile {
		merged[k] = v
	}
	for k, v := range cli {
		merged[k] = v
	}
	return merged
}

// ProcessVariables is MergeVariables over the current process environment.
func ProcessVariables(cli, profile map[string]string) map[string]string {
	return MergeVariables(cli, profile, os.Environ())
}
