// Package rewrite adapts script text to the environment it is deployed to.
//
// Scripts are written against any environment's names. Before execution the
// Rewriter replaces:
//
//   - qualified database references (LAKEHOUSE.PUBLIC.T becomes LAKEHOUSE_DEV.PUBLIC.T)
//   - WAREHOUSE = <name> assignments, using the environment's warehouse map
//   - external stage references such as @STAGE.DEV_CSV_STAGE
//   - {{ name }} variable tokens
//
// Rewriting is purely textual and idempotent. Files on the exclusion list are
// returned untouched.
package rewrite

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/pseudomuto/snowkeeper/pkg/config"
)

var (
	warehousePattern = regexp.MustCompile(`(?i)(\bWAREHOUSE\s*=\s*)([A-Za-z_][\w$]*)`)
	varPattern       = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
)

type (
	// Rewriter rewrites scripts for a single environment. It is safe for
	// concurrent use once built.
	Rewriter struct {
		environment string
		databases   []rule
		stages      []rule
		warehouses  map[string]string
		vars        map[string]string
		exclude     []string
	}

	rule struct {
		name        string
		pattern     *regexp.Regexp
		replacement string
	}
)

// New builds a Rewriter for environment from the project configuration. vars
// may be nil.
func New(cfg *config.Config, environment string, vars map[string]string) *Rewriter {
	r := &Rewriter{
		environment: environment,
		warehouses:  make(map[string]string),
		vars:        vars,
		exclude:     cfg.ExcludeFiles,
	}

	for _, name := range sortedKeys(cfg.Databases) {
		db := cfg.Databases[name]
		concrete, ok := db.Environments[environment]
		if !ok {
			continue
		}

		aliases := aliasesOf(name, db.Environments, concrete, db.Preserve)
		if len(aliases) == 0 {
			continue
		}

		r.databases = append(r.databases, rule{
			name:        name,
			pattern:     regexp.MustCompile(`\b(` + alternation(aliases) + `)\.`),
			replacement: concrete + ".",
		})
	}

	for _, name := range sortedKeys(cfg.Stages) {
		stages := cfg.Stages[name]
		concrete, ok := stages[environment]
		if !ok {
			continue
		}

		aliases := aliasesOf("", stages, concrete, nil)
		if len(aliases) == 0 {
			continue
		}

		r.stages = append(r.stages, rule{
			name:        name,
			pattern:     regexp.MustCompile(`(` + alternation(aliases) + `)\b`),
			replacement: concrete,
		})
	}

	for alias, target := range cfg.Warehouses[environment] {
		r.warehouses[strings.ToUpper(alias)] = target
	}

	return r
}

// Environment returns the environment the Rewriter targets.
func (r *Rewriter) Environment() string { return r.environment }

// Excluded reports whether the file name is on the exclusion list.
func (r *Rewriter) Excluded(name string) bool {
	return slices.Contains(r.exclude, name)
}

// Rewrite returns content adapted to the environment. name is the script's
// base file name and is only used for the exclusion list.
func (r *Rewriter) Rewrite(name, content string) string {
	if r.Excluded(name) {
		slog.Debug("Script excluded from rewriting", "script", name)
		return content
	}

	if len(r.vars) > 0 {
		content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
			key := varPattern.FindStringSubmatch(match)[1]
			if v, ok := r.vars[key]; ok {
				return v
			}

			return match
		})
	}

	for _, rl := range r.databases {
		content = rl.apply(name, content)
	}

	for _, rl := range r.stages {
		content = rl.apply(name, content)
	}

	content = warehousePattern.ReplaceAllStringFunc(content, func(match string) string {
		parts := warehousePattern.FindStringSubmatch(match)
		target, ok := r.warehouses[strings.ToUpper(parts[2])]
		if !ok || target == parts[2] {
			return match
		}

		slog.Debug("Rewriting warehouse", "script", name, "from", parts[2], "to", target)
		return parts[1] + target
	})

	return content
}

func (rl rule) apply(script, content string) string {
	if !rl.pattern.MatchString(content) {
		return content
	}

	slog.Debug("Rewriting references", "script", script, "alias", rl.name, "to", rl.replacement)
	return rl.pattern.ReplaceAllLiteralString(content, rl.replacement)
}

// aliasesOf returns every name that should be rewritten to concrete: the
// logical name and every environment's name, less concrete itself and the
// preserved names.
func aliasesOf(logical string, envs map[string]string, concrete string, preserve []string) []string {
	var out []string
	add := func(alias string) {
		alias = strings.TrimSpace(alias)
		if alias == "" || alias == concrete || slices.Contains(preserve, alias) || slices.Contains(out, alias) {
			return
		}
		out = append(out, alias)
	}

	add(logical)
	for _, env := range sortedKeys(envs) {
		add(envs[env])
	}

	// longest first so LAKEHOUSE_TEST is never consumed as LAKEHOUSE
	slices.SortStableFunc(out, func(a, b string) int { return len(b) - len(a) })
	return out
}

func alternation(aliases []string) string {
	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = regexp.QuoteMeta(a)
	}

	return strings.Join(quoted, "|")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)
	return keys
}
