package changeset_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/changeset"
	"github.com/pseudomuto/snowkeeper/pkg/devops"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type mockDiff struct {
	pages   [][]devops.Change
	items   []devops.Item
	err     error
	queries []devops.DiffQuery
}

func (m *mockDiff) Changes(_ context.Context, q devops.DiffQuery) ([]devops.Change, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}

	idx := len(m.queries) - 1
	if idx >= len(m.pages) {
		return nil, nil
	}
	return m.pages[idx], nil
}

func (m *mockDiff) Items(context.Context, string) ([]devops.Item, error) {
	return m.items, m.err
}

func change(path, kind string) devops.Change {
	return devops.Change{Item: devops.Item{Path: path}, ChangeType: kind}
}

func newFs(t *testing.T, files ...string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/repo", 0o755))
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fs, f, []byte("select 1;"), 0o644))
		require.NoError(t, fs.Chtimes(f, testTime, testTime))
	}

	return fs
}

func paths(ss []*script.Script) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.FullPath)
	}
	return out
}

func TestResolveEmptyOrderFile(t *testing.T) {
	fs := newFs(t, "/repo/coEDW/V_create_table.sql")
	diff := &mockDiff{pages: [][]devops.Change{{change("/coEDW/V_create_table.sql", devops.ChangeAdd)}}}

	set, err := changeset.NewResolver(changeset.Config{Fs: fs, Diff: diff}).Resolve(context.Background(), changeset.Request{
		Root:    "/repo",
		Base:    "abc",
		Target:  "def",
		Subtree: "/coEDW/",
	})
	require.NoError(t, err)
	require.Len(t, set.Versioned, 1)
	require.Zero(t, set.Repeatable.Len())

	s := set.Versioned[0]
	require.Equal(t, script.Versioned, s.Type)
	require.Equal(t, "Create table", s.Description)
	require.Equal(t, "/repo/coEDW/V_create_table.sql", s.FullPath)
	require.True(t, s.ModifiedAt.Equal(testTime))
}

func TestResolveSubtreeIsRootRelative(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, f := range []string{"/agent/coEDW/s/account/V_grant.sql", "/agent/coEDW/s/coEDW/V_table.sql"} {
		require.NoError(t, afero.WriteFile(fs, f, []byte("select 1;"), 0o644))
	}

	diff := &mockDiff{pages: [][]devops.Change{{
		change("/account/V_grant.sql", devops.ChangeAdd),
		change("/coEDW/V_table.sql", devops.ChangeAdd),
	}}}

	set, err := changeset.NewResolver(changeset.Config{Fs: fs, Diff: diff}).Resolve(context.Background(), changeset.Request{
		Root:    "/agent/coEDW/s",
		Base:    "abc",
		Target:  "def",
		Subtree: "/coEDW/",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"/agent/coEDW/s/coEDW/V_table.sql"}, paths(set.Versioned))
	require.Zero(t, set.Repeatable.Len())
}

func TestResolvePaging(t *testing.T) {
	full := make([]devops.Change, 100)
	for i := range full {
		full[i] = change("/docs/readme.md", devops.ChangeEdit)
	}

	diff := &mockDiff{pages: [][]devops.Change{full, {}}}
	_, err := changeset.NewResolver(changeset.Config{Fs: newFs(t), Diff: diff}).Resolve(context.Background(), changeset.Request{
		Root:   "/repo",
		Base:   "abc",
		Target: "def",
	})
	require.NoError(t, err)
	require.Len(t, diff.queries, 2)
	require.Equal(t, 0, diff.queries[0].Skip)
	require.Equal(t, 100, diff.queries[1].Skip)
	require.Equal(t, 100, diff.queries[1].Top)
	require.Equal(t, "abc", diff.queries[0].Base)
	require.Equal(t, "def", diff.queries[0].Target)
}

func TestResolveBuckets(t *testing.T) {
	fs := newFs(t,
		"/repo/coEDW/tables/V_b.sql",
		"/repo/coEDW/tables/V_a.sql",
		"/repo/coEDW/views/V_view.sql",
		"/repo/coEDW/misc/V_stray.sql",
		"/repo/coEDW/procs/R_proc.sql",
		"/repo/coEDW/procs/helper.sql",
		"/repo/coEDW/grants/A_grant.sql",
		"/repo/other/V_outside.sql",
	)

	diff := &mockDiff{pages: [][]devops.Change{{
		change("/coEDW/views/V_view.sql", devops.ChangeAdd),
		change("/coEDW/tables/V_b.sql", devops.ChangeEdit),
		change("/coEDW/tables/V_a.sql", devops.ChangeEditRename),
		change("/coEDW/misc/V_stray.sql", devops.ChangeRename),
		change("/coEDW/procs/R_proc.sql", devops.ChangeEdit),
		change("/coEDW/procs/helper.sql", devops.ChangeAdd),
		change("/coEDW/grants/A_grant.sql", devops.ChangeAdd),
		change("/coEDW/deleted/V_gone.sql", devops.ChangeAdd),
		change("/coEDW/removed.sql", devops.ChangeDelete),
		change("/other/V_outside.sql", devops.ChangeAdd),
		{Item: devops.Item{Path: "/coEDW/folder.sql", IsFolder: true}, ChangeType: devops.ChangeAdd},
	}}}

	order, err := changeset.ParseOrderFile(strings.NewReader("coEDW/tables\ncoEDW/views\n"))
	require.NoError(t, err)

	set, err := changeset.NewResolver(changeset.Config{
		Fs:    fs,
		Diff:  diff,
		Order: order,
	}).Resolve(context.Background(), changeset.Request{
		Root:    "/repo",
		Base:    "abc",
		Target:  "def",
		Subtree: "/coEDW/",
	})
	require.NoError(t, err)

	require.Equal(t, []string{
		"/repo/coEDW/tables/V_a.sql",
		"/repo/coEDW/tables/V_b.sql",
		"/repo/coEDW/views/V_view.sql",
	}, paths(set.Versioned))

	require.Equal(t, []string{
		"/repo/coEDW/misc/V_stray.sql",
		"/repo/coEDW/procs/R_proc.sql",
		"/repo/coEDW/procs/helper.sql",
	}, paths(set.Repeatable.Scripts()))

	require.Empty(t, set.Account)
	require.Equal(t, []string{"/repo/coEDW/grants/A_grant.sql"}, paths(set.Ignored))
	require.Equal(t, 6, set.Len())
}

func TestResolveAccountMode(t *testing.T) {
	fs := newFs(t,
		"/repo/account/V_new.sql",
		"/repo/account/V_edited.sql",
		"/repo/account/A_roles.sql",
		"/repo/account/post_deployment/A_grants.sql",
		"/repo/account/post_deployment/A_changed.sql",
	)

	diff := &mockDiff{
		pages: [][]devops.Change{{
			change("/account/V_new.sql", devops.ChangeAdd),
			change("/account/V_edited.sql", devops.ChangeEdit),
			change("/account/A_roles.sql", devops.ChangeEdit),
			change("/account/post_deployment/A_changed.sql", devops.ChangeEdit),
		}},
		items: []devops.Item{
			{Path: "/account", IsFolder: true},
			{Path: "/account/post_deployment/A_grants.sql"},
			{Path: "/account/post_deployment/A_changed.sql"},
			{Path: "/account/post_deployment/A_missing.sql"},
		},
	}

	set, err := changeset.NewResolver(changeset.Config{Fs: fs, Diff: diff}).Resolve(context.Background(), changeset.Request{
		Root:           "/repo",
		Base:           "abc",
		Target:         "def",
		Mode:           changeset.ModeAccount,
		Subtree:        "/account/",
		PostDeployment: "/account/post_deployment/",
		Branch:         "main",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"/repo/account/V_new.sql"}, paths(set.Versioned))
	require.Equal(t, []string{
		"/repo/account/A_roles.sql",
		"/repo/account/post_deployment/A_changed.sql",
	}, paths(set.Account))
	require.Equal(t, []string{"/repo/account/post_deployment/A_grants.sql"}, paths(set.PostDeployment))

	all := paths(set.Scripts())
	require.Equal(t, "/repo/account/V_new.sql", all[0])
	require.Equal(t, "/repo/account/post_deployment/A_grants.sql", all[len(all)-1])
}

func TestResolveFailures(t *testing.T) {
	t.Run("diff service errors", func(t *testing.T) {
		diff := &mockDiff{err: errors.New("boom")}
		_, err := changeset.NewResolver(changeset.Config{Fs: newFs(t), Diff: diff}).Resolve(context.Background(), changeset.Request{
			Root:   "/repo",
			Base:   "abc",
			Target: "def",
		})
		require.Error(t, err)
		require.Equal(t, failure.KindResolution, failure.KindOf(err))
	})

	tests := []struct {
		name string
		req  changeset.Request
	}{
		{name: "missing root", req: changeset.Request{Root: "/missing", Base: "a", Target: "b"}},
		{name: "missing base", req: changeset.Request{Root: "/repo", Target: "b"}},
		{name: "bad subtree", req: changeset.Request{Root: "/repo", Base: "a", Target: "b", Subtree: "("}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff := &mockDiff{}
			_, err := changeset.NewResolver(changeset.Config{Fs: newFs(t), Diff: diff}).Resolve(context.Background(), tt.req)
			require.Error(t, err)
			require.Equal(t, failure.KindConfiguration, failure.KindOf(err))
			require.Empty(t, diff.queries)
		})
	}
}
