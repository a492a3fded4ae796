// Package safety decides, before any process exists, whether a command is
// allowed to run.
//
// Detection is pattern based and therefore incomplete. It catches common
// irreversible operations (formatting filesystems, wiping system paths, power
// changes, fork bombs); it is a guard against accidents, not a sandbox.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/agentsh/internal/shared/errs"
)

// Category names a class of destructive command.
type Category string

const (
	CategoryForkBomb            Category = "fork_bomb"
	CategoryFilesystemFormat    Category = "filesystem_format"
	CategoryBlockDeviceWrite    Category = "block_device_write"
	CategoryPowerState          Category = "power_state"
	CategoryRecursiveDelete     Category = "recursive_delete"
	CategoryRecursivePermission Category = "recursive_permission"
	CategoryPolicy              Category = "policy"
)

// Decision is the outcome of Classify.
type Decision struct {
	Allowed  bool
	Category Category
	Reason   string
}

// Err converts a blocking decision into an *errs.BlockedError.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errs.Blocked(string(d.Category), d.Reason)
}

// Pattern is a single compiled rule.
type Pattern struct {
	Category    Category
	Description string
	re          *regexp.Regexp
}

// NewPattern compiles expr into a rule.
func NewPattern(category Category, description, expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, fmt.Errorf("compile %q: %w", expr, err)
	}
	return Pattern{Category: category, Description: description, re: re}, nil
}

func mustPattern(category Category, description, expr string) Pattern {
	p, err := NewPattern(category, description, expr)
	if err != nil {
		panic(err)
	}
	return p
}

var builtinPatterns = []Pattern{
	mustPattern(CategoryForkBomb, "fork bomb", `:\(\)\s*\{.*\|.*&\s*\}\s*;`),
	mustPattern(CategoryFilesystemFormat, "filesystem format (mkfs)", `\bmkfs(\.\w+)?\b`),
	mustPattern(CategoryBlockDeviceWrite, "raw write to block device (dd of=/dev/...)", `\bdd\b.*\bof=/dev/`),
	mustPattern(CategoryBlockDeviceWrite, "redirect to block device", `>\s*/dev/(sd|nvme|hd|vd|xvd|disk|mapper/)`),
	mustPattern(CategoryPowerState, "system shutdown/reboot", `\b(shutdown|reboot|halt|poweroff)\b`),
	mustPattern(CategoryPowerState, "system halt/reboot via init", `\binit\s+[06]\b`),
}

// DefaultProtectedPaths are never valid targets of a recursive delete, chmod
// or chown.
var DefaultProtectedPaths = []string{
	"/", "/*",
	"/bin", "/sbin", "/usr", "/etc", "/var", "/home", "/root",
	"/lib", "/lib64", "/opt", "/boot", "/dev", "/sys", "/proc",
	"/System", "/Library", "/Applications", "/Users",
	"/private", "/private/var", "/private/etc",
	"~", "$HOME", "${HOME}",
}

// Filter classifies commands against builtin and configured rules.
type Filter struct {
	patterns  []Pattern
	protected map[string]struct{}
}

// New creates a filter with the builtin rules plus anything in policy.
// A nil policy yields the builtin rules only.
func New(policy *Policy) (*Filter, error) {
	f := &Filter{
		patterns:  append([]Pattern(nil), builtinPatterns...),
		protected: make(map[string]struct{}),
	}
	for _, p := range DefaultProtectedPaths {
		f.protected[normalizePath(p)] = struct{}{}
	}

	if policy == nil {
		return f, nil
	}
	for _, rule := range policy.BlockedPatterns {
		category := Category(rule.Category)
		if category == "" {
			category = CategoryPolicy
		}
		p, err := NewPattern(category, rule.Description, rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("policy pattern: %w", err)
		}
		f.patterns = append(f.patterns, p)
	}
	for _, path := range policy.ProtectedPaths {
		f.protected[normalizePath(path)] = struct{}{}
	}
	return f, nil
}

var defaultFilter, _ = New(nil)

// Default returns the filter with builtin rules only.
func Default() *Filter { return defaultFilter }

// Classify checks command using the builtin rules.
func Classify(command string) Decision { return defaultFilter.Classify(command) }

// Classify returns Allow or the first matching block.
func (f *Filter) Classify(command string) Decision {
	for _, p := range f.patterns {
		if p.re.MatchString(command) {
			return Decision{
				Category: p.Category,
				Reason:   fmt.Sprintf("command matches dangerous pattern (%s)", p.Description),
			}
		}
	}

	for _, sub := range splitSubcommands(strings.TrimSpace(command)) {
		words := strings.Fields(sub)
		if len(words) == 0 {
			continue
		}
		if f.recursiveOnProtected(words, "rm", "rR") {
			return Decision{
				Category: CategoryRecursiveDelete,
				Reason:   "recursive delete targeting a protected path: " + strings.TrimSpace(sub),
			}
		}
		for _, name := range []string{"chmod", "chown"} {
			if f.recursiveOnProtected(words, name, "R") {
				return Decision{
					Category: CategoryRecursivePermission,
					Reason:   fmt.Sprintf("recursive %s on a protected path: %s", name, strings.TrimSpace(sub)),
				}
			}
		}
	}

	return Decision{Allowed: true}
}

// recursiveOnProtected reports whether words invoke name with a recursive
// flag (any short flag containing one of flagChars, or --recursive) against
// a protected path.
func (f *Filter) recursiveOnProtected(words []string, name, flagChars string) bool {
	pos := -1
	for i, w := range words {
		if w == name || strings.HasSuffix(w, "/"+name) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}
	args := words[pos+1:]

	recursive := false
	for _, a := range args {
		if a == "--recursive" || (strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.ContainsAny(a, flagChars)) {
			recursive = true
			break
		}
	}
	if !recursive {
		return false
	}

	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if _, ok := f.protected[normalizePath(a)]; ok {
			return true
		}
	}
	return false
}

func normalizePath(p string) string {
	p = strings.Trim(p, `"'`)
	if p == "/*" {
		return p
	}
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" && p != "" {
		return "/"
	}
	return trimmed
}

// splitSubcommands splits on ;, &&, ||, | and newlines. It is not a shell
// parser; quoting is ignored.
func splitSubcommands(cmd string) []string {
	return subcommandSeparator.Split(cmd, -1)
}

var subcommandSeparator = regexp.MustCompile(`&&|\|\||[;|\n]`)
