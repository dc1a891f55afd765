package audit

import (
	"context"
	"database/sql"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/consts"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/pseudomuto/snowkeeper/pkg/snowflake"
	"github.com/pseudomuto/snowkeeper/pkg/utils"
)

// StatusSuccess is the only status the engine records; failed scripts
// produce no row.
const StatusSuccess = "Success"

// snowflakeTimeFormat matches consts.BuildTimeLayout.
const snowflakeTimeFormat = "yyyymmddhh24miss"

// ErrNoBuild is returned by LastSuccessfulBuild when no build was recorded.
var ErrNoBuild = errors.New("no successful build recorded")

var (
	changeHistoryColumns = []string{
		"BUILD_ID VARCHAR",
		"BUILD_START_TIME TIMESTAMP_NTZ",
		"DESCRIPTION VARCHAR",
		"SCRIPT VARCHAR",
		"SCRIPT_TYPE VARCHAR",
		"CHECKSUM VARCHAR",
		"EXECUTION_TIME NUMBER",
		"STATUS VARCHAR",
		"INSTALLED_BY VARCHAR",
		"INSTALLED_ON TIMESTAMP_LTZ",
		"SCRIPT_PATH VARCHAR",
		"PIPELINE_NAME VARCHAR",
	}

	buildInformationColumns = []string{
		"SUCCESSFUL_BUILD_ID VARCHAR",
		"PIPELINE_NAME VARCHAR",
		"DATE TIMESTAMP_NTZ",
		"SQL_SCRIPTS VARCHAR",
	}
)

const (
	insertChange = `INSERT INTO IDENTIFIER(?) (BUILD_ID, BUILD_START_TIME, DESCRIPTION, SCRIPT, SCRIPT_TYPE, ` +
		`CHECKSUM, EXECUTION_TIME, STATUS, INSTALLED_BY, INSTALLED_ON, SCRIPT_PATH, PIPELINE_NAME) ` +
		`VALUES (?, TO_TIMESTAMP_NTZ(?, '` + snowflakeTimeFormat + `'), ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?, ?)`

	insertBuild = `INSERT INTO IDENTIFIER(?) (SUCCESSFUL_BUILD_ID, PIPELINE_NAME, DATE, SQL_SCRIPTS) ` +
		`VALUES (?, ?, TO_TIMESTAMP_NTZ(?, '` + snowflakeTimeFormat + `'), ?)`

	selectLastBuild = `SELECT SUCCESSFUL_BUILD_ID FROM IDENTIFIER(?) ` +
		`WHERE PIPELINE_NAME = ? OR ? = '' ORDER BY DATE DESC LIMIT 1`
)

type (
	// Execer runs a single statement. Both a session and a transaction
	// satisfy it.
	Execer interface {
		Exec(ctx context.Context, query string, args ...any) error
	}

	// Querier runs a query returning at most one row.
	Querier interface {
		QueryRow(ctx context.Context, query string, args ...any) snowflake.Row
	}

	// ChangeRecord is one change history row.
	ChangeRecord struct {
		BuildID        string
		BuildStartTime time.Time
		Script         *script.Script
		Checksum       string
		ExecutionTime  time.Duration
		InstalledBy    string
		Pipeline       string
	}

	// BuildRecord is one build information row.
	BuildRecord struct {
		// Revision is the target revision of the build.
		Revision  string
		Pipeline  string
		StartTime time.Time
		Scripts   []string
	}

	// Store writes and reads the audit tables.
	Store struct {
		changes Table
		builds  Table
	}
)

// DefaultTables returns the default change history and build information
// tables in database.
func DefaultTables(database string) (changes, builds Table) {
	changes = Table{Database: database, Schema: consts.DefaultMetadataSchema, Name: consts.DefaultChangeHistoryTable}
	builds = Table{Database: database, Schema: consts.DefaultMetadataSchema, Name: consts.DefaultBuildInfoTable}
	return changes, builds
}

// NewStore creates a Store for the given tables.
func NewStore(changes, builds Table) *Store {
	return &Store{changes: changes, builds: builds}
}

// ChangeHistory returns the change history table.
func (s *Store) ChangeHistory() Table { return s.changes }

// BuildInformation returns the build information table.
func (s *Store) BuildInformation() Table { return s.builds }

// Bootstrap creates the audit schemas and tables when they don't exist.
func (s *Store) Bootstrap(ctx context.Context, exec Execer) error {
	for _, tbl := range []struct {
		table   Table
		columns []string
		comment string
	}{
		{table: s.changes, columns: changeHistoryColumns, comment: "One row per applied change script"},
		{table: s.builds, columns: buildInformationColumns, comment: "One row per build that selected change scripts"},
	} {
		schema := utils.NewSQLBuilder().Create("SCHEMA").IfNotExists().Name(tbl.table.Database, tbl.table.Schema)
		if err := exec.Exec(ctx, schema.String()); err != nil {
			return errors.Wrapf(err, "failed to create schema for %s", tbl.table)
		}

		table := utils.NewSQLBuilder().
			Create("TABLE").
			IfNotExists().
			Name(tbl.table.Database, tbl.table.Schema, tbl.table.Name).
			Columns(tbl.columns...).
			Comment(tbl.comment)
		if err := exec.Exec(ctx, table.String()); err != nil {
			return errors.Wrapf(err, "failed to create table %s", tbl.table)
		}
	}

	return nil
}

// RecordChange appends a change history row.
func (s *Store) RecordChange(ctx context.Context, exec Execer, rec ChangeRecord) error {
	err := exec.Exec(ctx, insertChange,
		s.changes.Identifier(),
		rec.BuildID,
		rec.BuildStartTime.Format(consts.BuildTimeLayout),
		rec.Script.Description,
		rec.Script.Name,
		string(rec.Script.Type),
		rec.Checksum,
		int64(math.Round(rec.ExecutionTime.Seconds())),
		StatusSuccess,
		rec.InstalledBy,
		rec.Script.FullPath,
		rec.Pipeline,
	)

	return errors.Wrapf(err, "failed to record %s in %s", rec.Script.Name, s.changes)
}

// RecordBuild appends a build information row.
func (s *Store) RecordBuild(ctx context.Context, exec Execer, rec BuildRecord) error {
	err := exec.Exec(ctx, insertBuild,
		s.builds.Identifier(),
		rec.Revision,
		rec.Pipeline,
		rec.StartTime.Format(consts.BuildTimeLayout),
		strings.Join(rec.Scripts, ","),
	)

	return errors.Wrapf(err, "failed to record build %s in %s", rec.Revision, s.builds)
}

// LastSuccessfulBuild returns the revision of the most recent recorded
// build for pipeline. An empty pipeline matches every build.
func (s *Store) LastSuccessfulBuild(ctx context.Context, q Querier, pipeline string) (string, error) {
	var revision sql.NullString
	err := q.QueryRow(ctx, selectLastBuild, s.builds.Identifier(), pipeline, pipeline).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !revision.Valid) {
		return "", ErrNoBuild
	}

	if err != nil {
		return "", errors.Wrapf(err, "failed to read last successful build from %s", s.builds)
	}

	return revision.String, nil
}
