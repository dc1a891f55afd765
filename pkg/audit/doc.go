// Package audit owns the two append-only tables that record deployments.
//
// The change history table gets one row per applied script. The build
// information table gets one row per build that selected at least one
// script; its most recent SUCCESSFUL_BUILD_ID is the base revision of the
// next incremental build.
//
// Table locations are given in one, two or three part notation:
//
//	CHANGE_HISTORY                 table only (schema and database default)
//	DEPLOY.CHANGE_HISTORY          schema.table
//	COEDW.DEPLOY.CHANGE_HISTORY    database.schema.table
//
// Unquoted parts are upper-cased. All values are bound as parameters.
package audit
