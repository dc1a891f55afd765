package changeset

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/spf13/afero"
)

type (
	// OrderFile is the ordered list of folders that sequences versioned
	// scripts. An empty OrderFile matches every script at position 0.
	OrderFile struct {
		entries [][]string
	}

	// Policy assigns versioned scripts to a position in the OrderFile.
	Policy struct {
		order *OrderFile
		strip int
	}
)

// ParseOrderFile reads one folder per line. Blank lines and lines starting
// with # are ignored.
func ParseOrderFile(r io.Reader) (*OrderFile, error) {
	of := &OrderFile{}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		of.entries = append(of.entries, segments(line))
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read order file")
	}

	return of, nil
}

// LoadOrderFile reads the order file at path. A missing file is an empty
// OrderFile.
func LoadOrderFile(fs afero.Fs, path string) (*OrderFile, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &OrderFile{}, nil
		}

		return nil, errors.Wrapf(err, "failed to open order file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return ParseOrderFile(f)
}

// Len returns the number of explicit entries.
func (o *OrderFile) Len() int { return len(o.entries) }

// Position returns the index of the first entry equal to dir, segment by
// segment.
func (o *OrderFile) Position(dir []string) (int, bool) {
	if len(o.entries) == 0 {
		return 0, true
	}

	for i, entry := range o.entries {
		if slices.Equal(entry, dir) {
			return i, true
		}
	}

	return 0, false
}

// NewPolicy creates a Policy. strip is the number of leading folder segments
// below the root that are ignored when matching.
func NewPolicy(order *OrderFile, strip int) *Policy {
	if order == nil {
		order = &OrderFile{}
	}

	return &Policy{order: order, strip: strip}
}

// Sequence splits candidates into the scripts that have a place in the order
// file, sorted by that place, and those that do not. Candidates sharing a
// place keep their relative order.
func (p *Policy) Sequence(root string, candidates []*script.Script) (ordered, unordered []*script.Script) {
	type placed struct {
		pos    int
		script *script.Script
	}

	var found []placed
	for _, s := range candidates {
		pos, ok := p.order.Position(p.folder(root, s.FullPath))
		if !ok {
			unordered = append(unordered, s)
			continue
		}

		found = append(found, placed{pos: pos, script: s})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	ordered = make([]*script.Script, 0, len(found))
	for _, f := range found {
		ordered = append(ordered, f.script)
	}

	return ordered, unordered
}

// folder returns the folder segments of path relative to root, minus the
// stripped prefix.
func (p *Policy) folder(root, path string) []string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	dir := segments(filepath.Dir(rel))
	if p.strip >= len(dir) {
		return []string{}
	}

	return dir[p.strip:]
}

func segments(path string) []string {
	path = strings.Trim(filepath.ToSlash(path), "/")
	if path == "" || path == "." {
		return []string{}
	}

	return strings.Split(path, "/")
}
