package utils

import "strings"

// SQLBuilder provides a fluent interface for building Snowflake DDL statements.
//
// Example usage:
//
//	sql := NewSQLBuilder().
//		Alter("WAREHOUSE").
//		Name("ELT").
//		Set("WAREHOUSE_SIZE", "LARGE").
//		String()
//	// Output: ALTER WAREHOUSE "ELT" SET WAREHOUSE_SIZE = 'LARGE'
type SQLBuilder struct {
	parts []string
}

// NewSQLBuilder creates a new SQLBuilder instance.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{
		parts: make([]string, 0, 10),
	}
}

// Create adds a CREATE clause with the specified object type.
//
// Example:
//
//	builder.Create("SCHEMA")  // CREATE SCHEMA
//	builder.Create("TABLE")   // CREATE TABLE
func (b *SQLBuilder) Create(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "CREATE", objectType)
	return b
}

// Alter adds an ALTER clause with the specified object type.
func (b *SQLBuilder) Alter(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "ALTER", objectType)
	return b
}

// IfNotExists adds an IF NOT EXISTS clause.
func (b *SQLBuilder) IfNotExists() *SQLBuilder {
	b.parts = append(b.parts, "IF", "NOT", "EXISTS")
	return b
}

// Name adds a quoted, possibly qualified, object name.
//
// Example:
//
//	builder.Name("db", "deploy")  // "DB"."DEPLOY"
func (b *SQLBuilder) Name(parts ...string) *SQLBuilder {
	if name := QuoteName(parts...); name != "" {
		b.parts = append(b.parts, name)
	}
	return b
}

// Columns adds a parenthesised column definition list.
//
// Example:
//
//	builder.Columns("ID NUMBER", "NAME VARCHAR")  // (ID NUMBER, NAME VARCHAR)
func (b *SQLBuilder) Columns(defs ...string) *SQLBuilder {
	if len(defs) > 0 {
		b.parts = append(b.parts, "("+strings.Join(defs, ", ")+")")
	}
	return b
}

// Set adds a SET <property> = '<value>' clause.
func (b *SQLBuilder) Set(property, value string) *SQLBuilder {
	b.parts = append(b.parts, "SET", property, "=", QuoteLiteral(value))
	return b
}

// Comment adds a COMMENT = '<comment>' clause if comment is not empty.
func (b *SQLBuilder) Comment(comment string) *SQLBuilder {
	if comment != "" {
		b.parts = append(b.parts, "COMMENT", "=", QuoteLiteral(comment))
	}
	return b
}

// Raw adds raw SQL text.
func (b *SQLBuilder) Raw(sql string) *SQLBuilder {
	if sql != "" {
		b.parts = append(b.parts, sql)
	}
	return b
}

// String returns the built statement.
func (b *SQLBuilder) String() string {
	return strings.Join(b.parts, " ")
}
