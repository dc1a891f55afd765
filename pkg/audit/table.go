package audit

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/pseudomuto/snowkeeper/pkg/utils"
)

var (
	nameLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "QuotedIdent", Pattern: `"(""|[^"])*"`},
		{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_$]*`},
		{Name: "Dot", Pattern: `\.`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	nameParser = participle.MustBuild[qualifiedName](
		participle.Lexer(nameLexer),
		participle.Elide("Whitespace"),
	)
)

type (
	// Table is a fully qualified table location. Parts are either upper-cased
	// identifiers or double quoted identifiers kept exactly as written.
	Table struct {
		Database string
		Schema   string
		Name     string
	}

	qualifiedName struct {
		Parts []string `parser:"@(Ident | QuotedIdent) ( Dot @(Ident | QuotedIdent) )*"`
	}
)

// ParseTable resolves name against defaults. An empty name returns defaults.
// Names with more than three parts, or that aren't identifiers at all, are
// configuration failures.
//
// Example:
//
//	t, err := audit.ParseTable("deploy.history", audit.Table{
//		Database: "COEDW_DEV",
//		Schema:   "DEPLOY",
//		Name:     "CHANGE_HISTORY",
//	})
//	// t == audit.Table{Database: "COEDW_DEV", Schema: "DEPLOY", Name: "HISTORY"}
func ParseTable(name string, defaults Table) (Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaults, nil
	}

	qn, err := nameParser.ParseString("", name)
	if err != nil {
		return Table{}, failure.Configuration(errors.Wrapf(err, "invalid table name: %s", name))
	}

	parts := make([]string, len(qn.Parts))
	for i, p := range qn.Parts {
		if !utils.IsQuoted(p) {
			p = strings.ToUpper(p)
		}
		parts[i] = p
	}

	t := defaults
	switch len(parts) {
	case 1:
		t.Name = parts[0]
	case 2:
		t.Schema, t.Name = parts[0], parts[1]
	case 3:
		t.Database, t.Schema, t.Name = parts[0], parts[1], parts[2]
	default:
		return Table{}, failure.Configuration(
			errors.Errorf("invalid table name: %s (expected at most 3 parts, got %d)", name, len(parts)),
		)
	}

	return t, nil
}

// String returns the table in dotted notation.
func (t Table) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.Database, t.Schema, t.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	return strings.Join(parts, ".")
}

// Identifier returns the quoted name suitable for binding to IDENTIFIER(?).
func (t Table) Identifier() string {
	return utils.QuoteName(t.Database, t.Schema, t.Name)
}
