package rewrite_test

import (
	"strings"
	"testing"

	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/pseudomuto/snowkeeper/pkg/rewrite"
	"github.com/stretchr/testify/require"
)

func TestRewriteQualifiedDatabase(t *testing.T) {
	cfg := &config.Config{
		Databases: map[string]config.Database{
			"LAKEHOUSE": {Environments: map[string]string{"dev": "LAKEHOUSE_DEV", "prd": "LAKEHOUSE"}},
		},
	}

	out := rewrite.New(cfg, "dev", nil).Rewrite("V_x.sql", "SELECT * FROM LAKEHOUSE.PUBLIC.T1")
	require.Contains(t, out, "LAKEHOUSE_DEV.PUBLIC.T1")
	require.NotRegexp(t, `\bLAKEHOUSE\.`, out)
}

func TestRewrite(t *testing.T) {
	cfg := config.Defaults()

	tests := []struct {
		name     string
		env      string
		script   string
		vars     map[string]string
		input    string
		expected string
	}{
		{
			name:     "alias equal to concrete name is untouched",
			env:      "prd",
			input:    "SELECT 1 FROM LAKEHOUSE.PUBLIC.T1",
			expected: "SELECT 1 FROM LAKEHOUSE.PUBLIC.T1",
		},
		{
			name:     "other environment names are rewritten",
			env:      "prd",
			input:    "SELECT 1 FROM LAKEHOUSE_DEV.PUBLIC.T1",
			expected: "SELECT 1 FROM LAKEHOUSE.PUBLIC.T1",
		},
		{
			name:     "unqualified names are untouched",
			env:      "dev",
			input:    "USE DATABASE LAKEHOUSE",
			expected: "USE DATABASE LAKEHOUSE",
		},
		{
			name:     "preserved names are untouched",
			env:      "prd",
			input:    "CREATE DATABASE COEDW_PREPROD.PUBLIC CLONE COEDW.PUBLIC",
			expected: "CREATE DATABASE COEDW_PREPROD.PUBLIC CLONE COEDW.PUBLIC",
		},
		{
			name:     "environments without a mapping are untouched",
			env:      "preprod",
			input:    "SELECT 1 FROM LAKEHOUSE.PUBLIC.T1",
			expected: "SELECT 1 FROM LAKEHOUSE.PUBLIC.T1",
		},
		{
			name:     "excluded files pass through",
			env:      "dev",
			script:   "sp_clone_from_prod_to_devtest.sql",
			input:    "CREATE DATABASE COEDW_TEST CLONE COEDW.PUBLIC; WAREHOUSE = ELT {{ x }}",
			vars:     map[string]string{"x": "y"},
			expected: "CREATE DATABASE COEDW_TEST CLONE COEDW.PUBLIC; WAREHOUSE = ELT {{ x }}",
		},
		{
			name:     "unmapped warehouses are untouched",
			env:      "dev",
			input:    "ALTER TASK t SET WAREHOUSE = REPORTING_WH",
			expected: "ALTER TASK t SET WAREHOUSE = REPORTING_WH",
		},
		{
			name:     "warehouse keyword is case insensitive",
			env:      "dev",
			input:    "create task t warehouse\t=  ELT as select 1",
			expected: "create task t warehouse\t=  ELT_DEV_TEST as select 1",
		},
		{
			name:     "variables are substituted",
			env:      "dev",
			vars:     map[string]string{"schema": "REPORTING"},
			input:    "CREATE SCHEMA {{schema}}; SELECT '{{ missing }}'",
			expected: "CREATE SCHEMA REPORTING; SELECT '{{ missing }}'",
		},
		{
			name:     "variable values are rewritten for the environment",
			env:      "dev",
			vars:     map[string]string{"src": "LAKEHOUSE.PUBLIC.T1", "wh": "ELT"},
			input:    "CREATE TASK t WAREHOUSE = {{ wh }} AS SELECT * FROM {{ src }}",
			expected: "CREATE TASK t WAREHOUSE = ELT_DEV_TEST AS SELECT * FROM LAKEHOUSE_DEV.PUBLIC.T1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := tt.script
			if script == "" {
				script = "V_test.sql"
			}

			r := rewrite.New(cfg, tt.env, tt.vars)
			out := r.Rewrite(script, tt.input)
			require.Equal(t, tt.expected, out)
			require.Equal(t, out, r.Rewrite(script, out))
		})
	}
}

func TestRewriteIsIdempotentForEveryEnvironment(t *testing.T) {
	cfg := config.Defaults()
	input := strings.Join([]string{
		"SELECT * FROM LAKEHOUSE.A.B, LAKEHOUSE_DEV.A.B, LAKEHOUSE_TEST.A.B",
		"JOIN COEDW.A.B, COEDW_DEV.A.B, COEDW_TEST.A.B, COEDW_PREPROD.A.B",
		"WAREHOUSE = ELT WAREHOUSE=ELT_DEV_TEST",
		"@STAGE.DEV_CSV_STAGE @STAGE.TST_CSV_STAGE @STAGE.UAT_CSV_STAGE @STAGE.PRD_CSV_STAGE",
	}, "\n")

	for _, env := range cfg.Environments {
		t.Run(env, func(t *testing.T) {
			r := rewrite.New(cfg, env, nil)
			once := r.Rewrite("R_x.sql", input)
			require.Equal(t, once, r.Rewrite("R_x.sql", once))
		})
	}
}
