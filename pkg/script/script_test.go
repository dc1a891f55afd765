package script_test

import (
	"testing"
	"time"

	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	modTime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name        string
		path        string
		kind        script.Type
		description string
		tags        []string
	}{
		{
			name:        "versioned",
			path:        "/repo/coEDW/V_create_table.sql",
			kind:        script.Versioned,
			description: "Create table",
		},
		{
			name:        "lower case prefix",
			path:        "/repo/coEDW/v_add_COLUMN.sql",
			kind:        script.Versioned,
			description: "Add column",
		},
		{
			name:        "repeatable with env tags",
			path:        "/repo/coEDW/R_cleanup(DEV)(TST).sql",
			kind:        script.Repeatable,
			description: "Cleanup(dev)(tst)",
			tags:        []string{"dev", "tst"},
		},
		{
			name:        "account level",
			path:        "/repo/account/A_grant_roles.sql",
			kind:        script.AccountLevel,
			description: "Grant roles",
		},
		{
			name:        "unconventional name defaults to repeatable",
			path:        "/repo/coEDW/sp_clone_from_prod.sql",
			kind:        script.Repeatable,
			description: "Sp clone from prod",
		},
		{
			name:        "unknown prefix",
			path:        "/repo/coEDW/X_thing(PRD).sql",
			kind:        script.Repeatable,
			description: "X thing(prd)",
			tags:        []string{"prd"},
		},
		{
			name:        "preprod tag",
			path:        "/repo/coEDW/R_refresh(preprod).sql",
			kind:        script.Repeatable,
			description: "Refresh(preprod)",
			tags:        []string{"preprod"},
		},
	}

	classifier := script.NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := classifier.Classify(tt.path, modTime)
			require.Equal(t, tt.path, s.FullPath)
			require.Equal(t, tt.kind, s.Type)
			require.Equal(t, tt.description, s.Description)
			require.Equal(t, tt.tags, s.EnvTags)
			require.Equal(t, modTime, s.ModifiedAt)
		})
	}
}

func TestEnvTags(t *testing.T) {
	classifier := script.NewClassifier("dev", "tst", "prd")

	require.Nil(t, classifier.EnvTags("R_plain.sql"))
	require.Nil(t, classifier.EnvTags("R_not_an_env(QA).sql"))
	require.Equal(t, []string{"dev"}, classifier.EnvTags("R_x(Dev)(DEV).sql"))
	require.Equal(t, []string{"prd", "tst"}, classifier.EnvTags("R_x(PRD)_y(tst).sql"))
}

func TestAppliesTo(t *testing.T) {
	classifier := script.NewClassifier()

	t.Run("untagged scripts apply everywhere", func(t *testing.T) {
		s := classifier.Classify("/r/V_x.sql", time.Time{})
		for _, env := range []string{"dev", "tst", "preprod", "prd", ""} {
			require.True(t, s.AppliesTo(env), env)
		}
	})

	t.Run("tagged scripts apply only to listed environments", func(t *testing.T) {
		s := classifier.Classify("/r/R_cleanup(DEV)(TST).sql", time.Time{})
		require.True(t, s.AppliesTo("dev"))
		require.True(t, s.AppliesTo("TST"))
		require.False(t, s.AppliesTo("prd"))
		require.False(t, s.AppliesTo("preprod"))
	})
}

func TestTypeString(t *testing.T) {
	require.Equal(t, "versioned", script.Versioned.String())
	require.Equal(t, "repeatable", script.Repeatable.String())
	require.Equal(t, "account", script.AccountLevel.String())
}
