// Package utils provides common utility functions used throughout the snowkeeper codebase.
//
// # Identifier Utilities (identifier.go)
//
// Snowflake folds unquoted identifiers to upper case and treats double quoted
// identifiers literally. The helpers here quote names consistently so that
// generated statements never depend on the caller's casing:
//
//	utils.QuoteIdentifier("change_history")
//	// Result: "CHANGE_HISTORY"
//
//	utils.QuoteName("analytics", "deploy", "change_history")
//	// Result: "ANALYTICS"."DEPLOY"."CHANGE_HISTORY"
//
//	// Already quoted parts are kept as written
//	utils.QuoteName(`"MixedCase"`, "t")
//	// Result: "MixedCase"."T"
//
// String literals are quoted with QuoteLiteral:
//
//	utils.QuoteLiteral("O'Brien")
//	// Result: 'O''Brien'
//
// # SQL Builder (sqlbuilder.go)
//
// SQLBuilder assembles the handful of DDL statements snowkeeper issues itself
// (audit schema bootstrap and warehouse resizing):
//
//	sql := utils.NewSQLBuilder().
//		Create("SCHEMA").
//		IfNotExists().
//		Name("ANALYTICS", "DEPLOY").
//		String()
//	// Output: CREATE SCHEMA IF NOT EXISTS "ANALYTICS"."DEPLOY"
//
// Statements built here contain identifiers and literals only. Values that
// originate from users are always bound as parameters instead.
package utils
