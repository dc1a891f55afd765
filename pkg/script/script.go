// Package script classifies change script files by their names.
//
// A change script name follows the convention <type>_<description>.sql where
// type is one of:
//
//   - V (versioned): applied at most once per build, in the order file sequence
//   - R (repeatable): applied every time it is selected; the default
//   - A (account level): applies to the whole account rather than one database
//
// Parenthesised environment codes anywhere in the name restrict where the
// script runs, e.g. R_cleanup(DEV)(TST).sql only runs in dev and tst.
package script

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/pseudomuto/snowkeeper/pkg/consts"
)

const (
	Versioned    Type = "V"
	Repeatable   Type = "R"
	AccountLevel Type = "A"
)

var namePattern = regexp.MustCompile(`^([RrVvAa])_(.+)\.sql$`)

type (
	// Type is the kind of change script.
	Type string

	// Script describes a single change script file.
	Script struct {
		// Name is the base file name.
		Name string

		// FullPath is the absolute path and the script's identity.
		FullPath string

		Type        Type
		Description string

		// ModifiedAt is only ever used as a tie-breaker.
		ModifiedAt time.Time

		// EnvTags is nil when the script applies to every environment.
		EnvTags []string
	}

	// Classifier parses file names into Scripts. It knows the environment
	// codes that may appear as run guards in a name.
	Classifier struct {
		envPattern *regexp.Regexp
	}
)

// String returns a human readable type name.
func (t Type) String() string {
	switch t {
	case Versioned:
		return "versioned"
	case AccountLevel:
		return "account"
	default:
		return "repeatable"
	}
}

// NewClassifier creates a Classifier recognising the given environment codes.
// When none are given consts.DefaultEnvironments is used.
func NewClassifier(environments ...string) *Classifier {
	if len(environments) == 0 {
		environments = consts.DefaultEnvironments
	}

	codes := make([]string, 0, len(environments))
	for _, env := range environments {
		codes = append(codes, regexp.QuoteMeta(strings.ToLower(env)))
	}

	// longest first so "preprod" wins over a hypothetical "pre"
	slices.SortFunc(codes, func(a, b string) int { return len(b) - len(a) })

	return &Classifier{
		envPattern: regexp.MustCompile(`(?i)\((` + strings.Join(codes, "|") + `)\)`),
	}
}

// Classify builds a Script for the file at fullPath. It never fails: names not
// following the convention become repeatable scripts described by the raw name.
//
// Example:
//
//	s := script.NewClassifier().Classify("/repo/coEDW/V_create_table.sql", modTime)
//	fmt.Println(s.Type, s.Description) // V Create table
func (c *Classifier) Classify(fullPath string, modifiedAt time.Time) *Script {
	name := filepath.Base(fullPath)

	s := &Script{
		Name:       name,
		FullPath:   fullPath,
		Type:       Repeatable,
		ModifiedAt: modifiedAt,
		EnvTags:    c.EnvTags(name),
	}

	parts := namePattern.FindStringSubmatch(strings.TrimSpace(name))
	if parts == nil {
		s.Description = describe(strings.TrimSuffix(name, filepath.Ext(name)))
		return s
	}

	s.Type = Type(strings.ToUpper(parts[1]))
	s.Description = describe(parts[2])
	return s
}

// EnvTags extracts the lower-cased environment codes guarding name. It returns
// nil when the name carries no guard at all.
func (c *Classifier) EnvTags(name string) []string {
	matches := c.envPattern.FindAllStringSubmatch(name, -1)
	if len(matches) == 0 {
		return nil
	}

	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.ToLower(m[1])
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}

	return tags
}

// AppliesTo reports whether the script should run in the given environment.
func (s *Script) AppliesTo(environment string) bool {
	if s.EnvTags == nil {
		return true
	}

	return slices.Contains(s.EnvTags, strings.ToLower(strings.TrimSpace(environment)))
}

// describe turns "create_TABLE" into "Create table".
func describe(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", " "))
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToUpper(r)) + s[size:]
}
