package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fatih/color"
	"github.com/pseudomuto/snowkeeper/pkg/cmd/testutil"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestPlanCommand(t *testing.T) {
	t.Setenv("SYSTEM_ACCESSTOKEN", "")
	t.Setenv("SNOWKEEPER_ENVIRONMENT", "")

	p := testutil.TestProject(t).
		WithOrderFile("coEDW/LAKEHOUSE/Tables", "coEDW/LAKEHOUSE/Views").
		WithScript("coEDW/LAKEHOUSE/Views/V_customer_view.sql", "CREATE VIEW LAKEHOUSE.PUBLIC.V AS SELECT 1").
		WithScript("coEDW/LAKEHOUSE/Tables/V_customer.sql", "CREATE TABLE LAKEHOUSE.PUBLIC.C (ID INT)").
		WithScript("coEDW/LAKEHOUSE/Grants/R_cleanup(DEV)(TST).sql", "DELETE FROM LAKEHOUSE.PUBLIC.C").
		WithScript("coEDW/LAKEHOUSE/Procs/R_load.sql", "CALL LAKEHOUSE.PUBLIC.LOAD()").
		WithScript("coEDW/account/A_roles.sql", "CREATE ROLE IF NOT EXISTS READER")

	command := planCmd(planParams{Config: p.Config, Fs: p.Fs})
	out, err := testutil.RunCommandWithOutput(t, command, []string{
		"--root-folder", p.Root,
		"--database-environment", "prd",
		"--last-success-build-id", "4f1c2e9",
		"--current-head", "9a7d3b1",
		"--repository-id", "repo-1",
	})
	require.NoError(t, err)
	require.Equal(t, 1, p.Requests["diffs/commits"])
	require.Zero(t, p.Requests["items"])

	require.Equal(t, `Versioned scripts (2)
  apply /repo/coEDW/LAKEHOUSE/Tables/V_customer.sql
  apply /repo/coEDW/LAKEHOUSE/Views/V_customer_view.sql
Repeatable scripts (2)
  skip  /repo/coEDW/LAKEHOUSE/Grants/R_cleanup(DEV)(TST).sql (dev, tst only)
  apply /repo/coEDW/LAKEHOUSE/Procs/R_load.sql
Account scripts ignored in database mode (1)
  /repo/coEDW/account/A_roles.sql
Plan for prd: 3 to apply, 1 to skip
`, out)
}

func TestPlanCommandErrors(t *testing.T) {
	t.Setenv("SNOWKEEPER_ENVIRONMENT", "")

	tests := []struct {
		name string
		args []string
		kind failure.Kind
		err  string
	}{
		{
			name: "missing base revision",
			args: []string{"-e", "dev", "--current-head", "b", "--repository-id", "r"},
			kind: failure.KindConfiguration,
			err:  "--last-success-build-id is required",
		},
		{
			name: "unknown environment",
			args: []string{"-e", "uat", "--last-success-build-id", "a", "--current-head", "b", "--repository-id", "r"},
			kind: failure.KindConfiguration,
			err:  `unknown environment "uat"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.TestProject(t)
			command := planCmd(planParams{Config: p.Config, Fs: p.Fs})

			err := testutil.RunCommand(t, command, append([]string{"--root-folder", p.Root}, tt.args...))
			require.Equal(t, tt.kind, failure.KindOf(err))
			require.ErrorContains(t, err, tt.err)
		})
	}

	t.Run("diff service failure", func(t *testing.T) {
		p := testutil.TestProject(t)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		}))
		defer srv.Close()
		p.Config.DevOps.URL = srv.URL

		command := planCmd(planParams{Config: p.Config, Fs: p.Fs})
		err := testutil.RunCommand(t, command, []string{
			"--root-folder", p.Root, "-e", "dev",
			"--last-success-build-id", "a", "--current-head", "b", "--repository-id", "r",
		})
		require.Equal(t, failure.KindResolution, failure.KindOf(err))
		require.ErrorContains(t, err, "returned 401: unauthorized")
	})
}
