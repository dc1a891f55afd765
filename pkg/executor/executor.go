package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/audit"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/pseudomuto/snowkeeper/pkg/rewrite"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/pseudomuto/snowkeeper/pkg/snowflake"
	"github.com/spf13/afero"
)

const useDatabase = "USE DATABASE IDENTIFIER(?)"

const (
	// StatusApplied indicates the script ran and was recorded.
	StatusApplied ExecutionStatus = "applied"

	// StatusFailed indicates execution or auditing failed.
	StatusFailed ExecutionStatus = "failed"

	// StatusSkipped indicates the script does not apply to the environment.
	StatusSkipped ExecutionStatus = "skipped"
)

type (
	// DB is the session scripts are applied on.
	DB interface {
		snowflake.Execer
		Begin(context.Context) (snowflake.Tx, error)
	}

	// Observer is notified of every script outcome.
	Observer interface {
		Observe(*ExecutionResult)
	}

	// Build identifies the run in the change history.
	Build struct {
		ID        string
		StartTime time.Time
		User      string
		Pipeline  string
	}

	// Config contains configuration options for creating a new Executor.
	Config struct {
		DB       DB
		Store    *audit.Store
		Rewriter *rewrite.Rewriter

		// Fs defaults to the OS filesystem.
		Fs afero.Fs

		// Environment is the target environment code, e.g. "dev".
		Environment string

		// Database is made current before every script.
		Database string

		Autocommit bool
		Build      Build

		// Observer is optional.
		Observer Observer
	}

	// Executor applies scripts one at a time.
	Executor struct {
		db          DB
		store       *audit.Store
		rewriter    *rewrite.Rewriter
		fs          afero.Fs
		environment string
		database    string
		autocommit  bool
		build       Build
		observer    Observer
	}

	// ExecutionResult contains the result of processing a single script.
	ExecutionResult struct {
		Script *script.Script
		Status ExecutionStatus

		// Error is set for failed scripts.
		Error error

		// ExecutionTime covers the script itself, not the audit insert.
		ExecutionTime time.Duration

		// Checksum is the SHA-224 hex digest of the executed text.
		Checksum string
	}

	// ExecutionStatus represents the outcome of a script.
	ExecutionStatus string
)

// New creates a new Executor.
func New(cfg Config) *Executor {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}

	return &Executor{
		db:          cfg.DB,
		store:       cfg.Store,
		rewriter:    cfg.Rewriter,
		fs:          cfg.Fs,
		environment: cfg.Environment,
		database:    cfg.Database,
		autocommit:  cfg.Autocommit,
		build:       cfg.Build,
		observer:    cfg.Observer,
	}
}

// Execute processes scripts in order and stops at the first failure. The
// results of every processed script are returned; on failure the last
// result is the failed one and the error is a failure.Application error.
func (e *Executor) Execute(ctx context.Context, scripts []*script.Script) ([]*ExecutionResult, error) {
	results := make([]*ExecutionResult, 0, len(scripts))

	for _, s := range scripts {
		result := e.executeScript(ctx, s)
		results = append(results, result)

		if e.observer != nil {
			e.observer.Observe(result)
		}

		if result.Status == StatusFailed {
			return results, failure.Application(s.FullPath, result.Error)
		}
	}

	return results, nil
}

// Counts returns the number of applied and skipped results.
func Counts(results []*ExecutionResult) (applied, skipped int) {
	for _, r := range results {
		switch r.Status {
		case StatusApplied:
			applied++
		case StatusSkipped:
			skipped++
		}
	}

	return applied, skipped
}

// Prepare returns the text that would be executed for s and its checksum.
func (e *Executor) Prepare(s *script.Script) (string, string, error) {
	raw, err := afero.ReadFile(e.fs, s.FullPath)
	if err != nil {
		return "", "", errors.Wrapf(err, "failed to read %s", s.FullPath)
	}

	content := strings.TrimSpace(string(raw))
	content = strings.TrimSuffix(content, ";")
	if e.rewriter != nil {
		content = e.rewriter.Rewrite(filepath.Base(s.FullPath), content)
	}

	return content, Checksum(content), nil
}

// Checksum returns the SHA-224 hex digest of content.
func Checksum(content string) string {
	sum := sha256.Sum224([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (e *Executor) executeScript(ctx context.Context, s *script.Script) *ExecutionResult {
	log := slog.With("path", s.FullPath, "type", s.Type.String(), "environment", e.environment)

	if !s.AppliesTo(e.environment) {
		log.Info("Skipping change script", "environments", s.EnvTags)
		return &ExecutionResult{Script: s, Status: StatusSkipped}
	}

	log.Info("Applying change script")

	result := &ExecutionResult{Script: s, Status: StatusFailed}

	content, checksum, err := e.Prepare(s)
	if err != nil {
		result.Error = err
		return result
	}
	result.Checksum = checksum

	if err := e.db.Exec(ctx, useDatabase, e.database); err != nil {
		result.Error = errors.Wrapf(err, "failed to use database %s", e.database)
		return result
	}

	if e.autocommit {
		result.ExecutionTime, result.Error = e.apply(ctx, e.db, s, content, checksum)
	} else {
		result.ExecutionTime, result.Error = e.applyInTransaction(ctx, s, content, checksum)
	}

	if result.Error != nil {
		log.Error("Change script failed", "error", result.Error)
		return result
	}

	log.Debug("Change script applied", "checksum", checksum, "duration", result.ExecutionTime)
	result.Status = StatusApplied
	return result
}

func (e *Executor) applyInTransaction(
	ctx context.Context,
	s *script.Script,
	content, checksum string,
) (time.Duration, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return 0, err
	}

	elapsed, err := e.apply(ctx, tx, s, content, checksum)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Rollback failed", "path", s.FullPath, "error", rbErr)
		}

		return elapsed, err
	}

	return elapsed, tx.Commit()
}

// apply runs the script and writes its change history row. Empty scripts are
// recorded without being executed.
func (e *Executor) apply(
	ctx context.Context,
	exec snowflake.Execer,
	s *script.Script,
	content, checksum string,
) (time.Duration, error) {
	var elapsed time.Duration
	if content != "" {
		start := time.Now()
		if err := exec.ExecScript(ctx, content); err != nil {
			return 0, err
		}
		elapsed = time.Since(start)
	}

	err := e.store.RecordChange(ctx, exec, audit.ChangeRecord{
		BuildID:        e.build.ID,
		BuildStartTime: e.build.StartTime,
		Script:         s,
		Checksum:       checksum,
		ExecutionTime:  elapsed,
		InstalledBy:    e.build.User,
		Pipeline:       e.build.Pipeline,
	})

	return elapsed, err
}
