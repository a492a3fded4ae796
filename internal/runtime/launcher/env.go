package launcher

import (
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultStripPatterns match secrets commonly exported into a developer shell.
var DefaultStripPatterns = []string{
	"*_API_KEY",
	"*_TOKEN",
	"*_SECRET",
	"*_PASSWORD",
	"AWS_SECRET_ACCESS_KEY",
}

// EnvPolicy controls which inherited variables reach a child.
type EnvPolicy struct {
	Strip    bool
	Patterns []string
}

// Stripped reports whether name is removed under the policy. Matching is
// case-insensitive.
func (p EnvPolicy) Stripped(name string) bool {
	if !p.Strip {
		return false
	}
	upper := strings.ToUpper(name)
	for _, pattern := range p.Patterns {
		if ok, err := doublestar.Match(strings.ToUpper(pattern), upper); err == nil && ok {
			return true
		}
	}
	return false
}

// BuildEnv filters base through policy, then applies overrides in key order.
// Overrides replace inherited values and are never stripped.
func BuildEnv(base []string, policy EnvPolicy, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	index := make(map[string]int, len(base))

	for _, kv := range base {
		name, _, ok := strings.Cut(kv, "=")
		if !ok || policy.Stripped(name) {
			continue
		}
		if i, seen := index[name]; seen {
			env[i] = kv
			continue
		}
		index[name] = len(env)
		env = append(env, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		kv := k + "=" + overrides[k]
		if i, seen := index[k]; seen {
			env[i] = kv
			continue
		}
		index[k] = len(env)
		env = append(env, kv)
	}
	return env
}
