package changeset

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/consts"
	"github.com/pseudomuto/snowkeeper/pkg/devops"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/spf13/afero"
)

const (
	// ModeDatabase resolves versioned and repeatable scripts for one database.
	ModeDatabase Mode = iota

	// ModeAccount additionally resolves account level scripts.
	ModeAccount
)

type (
	// Mode selects how diff entries are filtered and bucketed.
	Mode int

	// DiffService is the subset of the devops client used for resolution.
	DiffService interface {
		Changes(context.Context, devops.DiffQuery) ([]devops.Change, error)
		Items(context.Context, string) ([]devops.Item, error)
	}

	// Config holds the collaborators of a Resolver.
	Config struct {
		Fs         afero.Fs
		Diff       DiffService
		Classifier *script.Classifier
		Order      *OrderFile

		// StripSegments is the number of leading folders below the root that
		// are ignored when matching order file entries.
		StripSegments int

		// PageSize defaults to consts.DiffPageSize.
		PageSize int
	}

	// Request describes a single resolution.
	Request struct {
		Root   string
		Base   string
		Target string
		Mode   Mode

		// Subtree is a regular expression every selected path must match.
		Subtree string

		// PostDeployment is a regular expression selecting account level
		// scripts from the full tree listing at Branch. Account mode only.
		PostDeployment string
		Branch         string
	}

	// Resolver builds ChangeSets.
	Resolver struct {
		fs         afero.Fs
		diff       DiffService
		classifier *script.Classifier
		policy     *Policy
		pageSize   int
	}
)

// NewResolver creates a Resolver from cfg.
func NewResolver(cfg Config) *Resolver {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Classifier == nil {
		cfg.Classifier = script.NewClassifier()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = consts.DiffPageSize
	}

	return &Resolver{
		fs:         cfg.Fs,
		diff:       cfg.Diff,
		classifier: cfg.Classifier,
		policy:     NewPolicy(cfg.Order, cfg.StripSegments),
		pageSize:   cfg.PageSize,
	}
}

// Resolve works out the scripts changed between req.Base and req.Target that
// still exist under req.Root. Problems with the request itself are
// configuration failures; anything else is a resolution failure.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*ChangeSet, error) {
	subtree, postDeploy, err := r.validate(req)
	if err != nil {
		return nil, failure.Configuration(err)
	}

	changed, err := r.changedPaths(ctx, req)
	if err != nil {
		return nil, failure.Resolution(err)
	}

	var postDeployPaths map[string]struct{}
	if req.Mode == ModeAccount && postDeploy != nil {
		if req.Branch == "" {
			slog.Warn("No branch given, skipping post deployment scripts")
		} else if postDeployPaths, err = r.postDeploymentPaths(ctx, req.Root, req.Branch, postDeploy); err != nil {
			return nil, failure.Resolution(err)
		}
	}

	set := &ChangeSet{Repeatable: NewScriptSet()}
	var walked, versioned []*script.Script

	err = afero.Walk(r.fs, req.Root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !strings.HasSuffix(info.Name(), ".sql") {
			return nil
		}

		path = filepath.Clean(path)
		_, inDiff := changed[path]
		_, inPostDeploy := postDeployPaths[path]
		if !inDiff && !inPostDeploy {
			return nil
		}

		s := r.classifier.Classify(path, info.ModTime())
		if !inDiff || !subtree.MatchString(repoPath(req.Root, path)) {
			if inPostDeploy && s.Type == script.AccountLevel {
				set.PostDeployment = append(set.PostDeployment, s)
			}

			return nil
		}

		switch s.Type {
		case script.Versioned:
			versioned = append(versioned, s)
			walked = append(walked, s)
		case script.Repeatable:
			walked = append(walked, s)
		case script.AccountLevel:
			if req.Mode == ModeAccount {
				set.Account = append(set.Account, s)
			} else {
				set.Ignored = append(set.Ignored, s)
			}
		}

		return nil
	})
	if err != nil {
		return nil, failure.Resolution(errors.Wrapf(err, "failed to walk %s", req.Root))
	}

	ordered, unordered := r.policy.Sequence(req.Root, versioned)
	set.Versioned = ordered

	demoted := make(map[string]struct{}, len(unordered))
	for _, s := range unordered {
		slog.Warn("Versioned script has no order file entry, treating as repeatable", "script", s.FullPath)
		demoted[s.FullPath] = struct{}{}
	}

	for _, s := range walked {
		if s.Type == script.Versioned {
			if _, ok := demoted[s.FullPath]; !ok {
				continue
			}
		}

		set.Repeatable.Add(s)
	}

	slog.Info("Resolved change set",
		"versioned", len(set.Versioned),
		"repeatable", set.Repeatable.Len(),
		"account", len(set.Account),
		"post_deployment", len(set.PostDeployment),
		"ignored", len(set.Ignored),
	)

	return set, nil
}

func (r *Resolver) validate(req Request) (subtree, postDeploy *regexp.Regexp, err error) {
	if req.Base == "" || req.Target == "" {
		return nil, nil, errors.New("base and target revisions are required")
	}

	info, err := r.fs.Stat(req.Root)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid root folder: %s", req.Root)
	}
	if !info.IsDir() {
		return nil, nil, errors.Errorf("root folder is not a directory: %s", req.Root)
	}

	if subtree, err = regexp.Compile(req.Subtree); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid subtree pattern: %s", req.Subtree)
	}

	if req.PostDeployment != "" {
		if postDeploy, err = regexp.Compile(req.PostDeployment); err != nil {
			return nil, nil, errors.Wrapf(err, "invalid post deployment pattern: %s", req.PostDeployment)
		}
	}

	return subtree, postDeploy, nil
}

// changedPaths pages through the diff and returns the local paths of every
// accepted entry.
func (r *Resolver) changedPaths(ctx context.Context, req Request) (map[string]struct{}, error) {
	paths := make(map[string]struct{})

	for skip := 0; ; skip += r.pageSize {
		page, err := r.diff.Changes(ctx, devops.DiffQuery{
			Base:   req.Base,
			Target: req.Target,
			Skip:   skip,
			Top:    r.pageSize,
		})
		if err != nil {
			return nil, err
		}

		slog.Debug("Fetched diff page", "skip", skip, "count", len(page))

		for _, c := range page {
			if c.Item.IsFolder || !strings.HasSuffix(c.Item.Path, ".sql") {
				continue
			}

			if r.accepts(req.Mode, c) {
				paths[localPath(req.Root, c.Item.Path)] = struct{}{}
			}
		}

		if len(page) < r.pageSize {
			return paths, nil
		}
	}
}

// accepts applies the change type filter. Account level scripts accept edits
// in either mode; in account mode every other script must be new or renamed.
func (r *Resolver) accepts(mode Mode, c devops.Change) bool {
	switch c.ChangeType {
	case devops.ChangeAdd, devops.ChangeRename, devops.ChangeEditRename:
		return true
	case devops.ChangeEdit:
		if mode == ModeDatabase {
			return true
		}

		return r.classifier.Classify(c.Item.Path, time.Time{}).Type == script.AccountLevel
	default:
		return false
	}
}

func (r *Resolver) postDeploymentPaths(
	ctx context.Context,
	root, branch string,
	pattern *regexp.Regexp,
) (map[string]struct{}, error) {
	items, err := r.diff.Items(ctx, branch)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for _, item := range items {
		if item.IsFolder || !pattern.MatchString(item.Path) {
			continue
		}

		if r.classifier.Classify(item.Path, time.Time{}).Type == script.AccountLevel {
			paths[localPath(root, item.Path)] = struct{}{}
		}
	}

	return paths, nil
}

func localPath(root, itemPath string) string {
	return filepath.Join(root, filepath.FromSlash(itemPath))
}

// repoPath is the inverse of localPath: the slash separated path of a local
// file relative to root, with a leading slash as the diff service reports it.
func repoPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return "/" + filepath.ToSlash(rel)
}
