package audit_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/audit"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/pseudomuto/snowkeeper/pkg/snowflake"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []any
}

type mockExecer struct {
	execFunc func(string) error
	calls    []execCall
}

func (m *mockExecer) Exec(_ context.Context, query string, args ...any) error {
	m.calls = append(m.calls, execCall{query: query, args: args})
	if m.execFunc != nil {
		return m.execFunc(query)
	}
	return nil
}

type mockRow struct {
	value *string
	err   error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}

	ns := dest[0].(*sql.NullString)
	if m.value != nil {
		ns.String, ns.Valid = *m.value, true
	}
	return nil
}

type mockQuerier struct {
	row   *mockRow
	query string
	args  []any
}

func (m *mockQuerier) QueryRow(_ context.Context, query string, args ...any) snowflake.Row {
	m.query, m.args = query, args
	return m.row
}

func newStore() *audit.Store {
	return audit.NewStore(audit.DefaultTables("COEDW_DEV"))
}

func TestBootstrap(t *testing.T) {
	exec := &mockExecer{}
	require.NoError(t, newStore().Bootstrap(context.Background(), exec))
	require.Len(t, exec.calls, 4)
	require.Equal(t, `CREATE SCHEMA IF NOT EXISTS "COEDW_DEV"."DEPLOY"`, exec.calls[0].query)
	require.Contains(t, exec.calls[1].query, `CREATE TABLE IF NOT EXISTS "COEDW_DEV"."DEPLOY"."CHANGE_HISTORY" (BUILD_ID VARCHAR,`)
	require.Contains(t, exec.calls[3].query, `"COEDW_DEV"."DEPLOY"."BUILD_INFORMATION" (SUCCESSFUL_BUILD_ID VARCHAR,`)

	t.Run("errors", func(t *testing.T) {
		exec := &mockExecer{execFunc: func(string) error { return errors.New("denied") }}
		err := newStore().Bootstrap(context.Background(), exec)
		require.EqualError(t, err, "failed to create schema for COEDW_DEV.DEPLOY.CHANGE_HISTORY: denied")
	})
}

func TestRecordChange(t *testing.T) {
	exec := &mockExecer{}
	s := script.NewClassifier().Classify("/repo/coEDW/V_create_table.sql", time.Time{})

	err := newStore().RecordChange(context.Background(), exec, audit.ChangeRecord{
		BuildID:        "build-1",
		BuildStartTime: time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC),
		Script:         s,
		Checksum:       "abc",
		ExecutionTime:  1600 * time.Millisecond,
		InstalledBy:    "DEPLOYER",
		Pipeline:       "coedw-ci",
	})
	require.NoError(t, err)
	require.Len(t, exec.calls, 1)

	call := exec.calls[0]
	require.Contains(t, call.query, "INSERT INTO IDENTIFIER(?)")
	require.Contains(t, call.query, "CURRENT_TIMESTAMP")
	require.Equal(t, []any{
		`"COEDW_DEV"."DEPLOY"."CHANGE_HISTORY"`,
		"build-1",
		"20240501130405",
		"Create table",
		"V_create_table.sql",
		"V",
		"abc",
		int64(2),
		audit.StatusSuccess,
		"DEPLOYER",
		"/repo/coEDW/V_create_table.sql",
		"coedw-ci",
	}, call.args)
}

func TestRecordChangeWithHostileValues(t *testing.T) {
	exec := &mockExecer{}
	s := script.NewClassifier().Classify("/repo/R_it's_'; DROP TABLE x; --.sql", time.Time{})

	require.NoError(t, newStore().RecordChange(context.Background(), exec, audit.ChangeRecord{Script: s}))
	require.NotContains(t, exec.calls[0].query, "DROP TABLE")
}

func TestRecordBuild(t *testing.T) {
	exec := &mockExecer{}
	err := newStore().RecordBuild(context.Background(), exec, audit.BuildRecord{
		Revision:  "def456",
		Pipeline:  "coedw-ci",
		StartTime: time.Date(2024, 5, 1, 13, 4, 5, 0, time.UTC),
		Scripts:   []string{"V_a.sql", "R_b.sql"},
	})
	require.NoError(t, err)
	require.Equal(t, []any{
		`"COEDW_DEV"."DEPLOY"."BUILD_INFORMATION"`,
		"def456",
		"coedw-ci",
		"20240501130405",
		"V_a.sql,R_b.sql",
	}, exec.calls[0].args)

	exec.execFunc = func(string) error { return errors.New("boom") }
	err = newStore().RecordBuild(context.Background(), exec, audit.BuildRecord{Revision: "def456"})
	require.EqualError(t, err, "failed to record build def456 in COEDW_DEV.DEPLOY.BUILD_INFORMATION: boom")
}

func TestLastSuccessfulBuild(t *testing.T) {
	revision := "abc123"

	tests := []struct {
		name     string
		row      *mockRow
		expected string
		err      error
	}{
		{name: "found", row: &mockRow{value: &revision}, expected: "abc123"},
		{name: "no rows", row: &mockRow{err: sql.ErrNoRows}, err: audit.ErrNoBuild},
		{name: "null", row: &mockRow{}, err: audit.ErrNoBuild},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{row: tt.row}
			got, err := newStore().LastSuccessfulBuild(context.Background(), q, "coedw-ci")
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expected, got)
			require.Equal(t, []any{`"COEDW_DEV"."DEPLOY"."BUILD_INFORMATION"`, "coedw-ci", "coedw-ci"}, q.args)
		})
	}

	t.Run("query error", func(t *testing.T) {
		q := &mockQuerier{row: &mockRow{err: errors.New("timeout")}}
		_, err := newStore().LastSuccessfulBuild(context.Background(), q, "")
		require.EqualError(t, err, "failed to read last successful build from COEDW_DEV.DEPLOY.BUILD_INFORMATION: timeout")
	})
}
