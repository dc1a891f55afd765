package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"testing"

	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/pseudomuto/snowkeeper/pkg/devops"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// ProjectFixture is an in-memory repository checkout with a fake Azure
// DevOps server describing its history.
type ProjectFixture struct {
	Root    string
	Fs      afero.Fs
	Config  *config.Config
	Changes []devops.Change
	Items   []devops.Item
	Server  *httptest.Server

	// Requests counts calls per endpoint ("diffs/commits", "items").
	Requests map[string]int

	t *testing.T
}

// TestProject creates an empty project rooted at /repo using the default
// configuration pointed at a fake diff service.
func TestProject(t *testing.T) *ProjectFixture {
	t.Helper()

	p := &ProjectFixture{
		Root:     "/repo",
		Fs:       afero.NewMemMapFs(),
		Config:   config.Defaults(),
		Requests: make(map[string]int),
		t:        t,
	}

	require.NoError(t, p.Fs.MkdirAll(p.Root, 0o755))

	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Server.Close)

	p.Config.DevOps.URL = p.Server.URL
	return p
}

// WithScript writes a script under the root and reports it as added in the
// diff. name is relative to the root using forward slashes.
func (p *ProjectFixture) WithScript(name, sql string) *ProjectFixture {
	return p.WithChange(name, sql, devops.ChangeAdd)
}

// WithChange writes a script and reports it with the given change type.
func (p *ProjectFixture) WithChange(name, sql, changeType string) *ProjectFixture {
	p.t.Helper()

	p.writeFile(name, sql)
	p.Changes = append(p.Changes, devops.Change{
		Item:       devops.Item{Path: "/" + name},
		ChangeType: changeType,
	})
	return p
}

// WithUnchanged writes a script that is listed on the branch but absent from
// the diff.
func (p *ProjectFixture) WithUnchanged(name, sql string) *ProjectFixture {
	p.t.Helper()

	p.writeFile(name, sql)
	p.Items = append(p.Items, devops.Item{Path: "/" + name})
	return p
}

// WithOrderFile writes the order file with the given entries.
func (p *ProjectFixture) WithOrderFile(entries ...string) *ProjectFixture {
	p.t.Helper()

	p.writeFile(p.Config.OrderFile, strings.Join(entries, "\n")+"\n")
	return p
}

func (p *ProjectFixture) writeFile(name, content string) {
	p.t.Helper()

	full := path.Join(p.Root, name)
	require.NoError(p.t, p.Fs.MkdirAll(path.Dir(full), 0o755))
	require.NoError(p.t, afero.WriteFile(p.Fs, full, []byte(content), 0o644))
}

func (p *ProjectFixture) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/diffs/commits"):
		p.Requests["diffs/commits"]++

		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		page := []devops.Change{}
		if skip < len(p.Changes) {
			page = p.Changes[skip:min(skip+top, len(p.Changes))]
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"changes": page})
	case strings.HasSuffix(r.URL.Path, "/items"):
		p.Requests["items"]++

		items := append([]devops.Item{}, p.Items...)
		for _, c := range p.Changes {
			items = append(items, c.Item)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"value": items})
	default:
		http.NotFound(w, r)
	}
}
