// Package scaler resizes the deployment warehouse for the duration of a run.
//
// Acquire looks up the size configured for the environment and resizes the
// warehouse when it differs from the current size. The returned Lease must be
// released on every exit path; releasing restores the original size only
// when a resize actually happened.
//
//	lease, err := scaler.New(admin, "ELT", sizes).Acquire(ctx, "prd")
//	if err != nil {
//		return err
//	}
//	defer lease.Release(context.WithoutCancel(ctx))
package scaler

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/pseudomuto/snowkeeper/pkg/snowflake"
)

const (
	// OutcomeNoPolicy means no size is configured for the environment.
	OutcomeNoPolicy Outcome = "no-policy"

	// OutcomeUnchanged means the warehouse already had the configured size.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomeResized means the warehouse was resized and will be reverted.
	OutcomeResized Outcome = "resized"
)

type (
	// Warehouses reads and changes warehouse sizes.
	Warehouses interface {
		WarehouseSize(ctx context.Context, name string) (string, error)
		ResizeWarehouse(ctx context.Context, name, size string) error
	}

	// Outcome describes what Acquire did.
	Outcome string

	// Scaler resizes a single warehouse according to a size policy.
	Scaler struct {
		warehouses Warehouses
		warehouse  string
		sizes      map[string]string
	}

	// Lease is the result of Acquire.
	Lease struct {
		Outcome  Outcome
		Original string
		Target   string

		scaler   *Scaler
		released bool
	}
)

// New creates a Scaler for warehouse. sizes maps environment to the size
// used while deploying.
func New(warehouses Warehouses, warehouse string, sizes map[string]string) *Scaler {
	return &Scaler{warehouses: warehouses, warehouse: warehouse, sizes: sizes}
}

// Acquire applies the size policy for environment.
func (s *Scaler) Acquire(ctx context.Context, environment string) (*Lease, error) {
	lease := &Lease{scaler: s, Outcome: OutcomeNoPolicy}

	target, ok := s.sizes[environment]
	if !ok || target == "" {
		slog.Info("No warehouse size configured, keeping current size",
			"warehouse", s.warehouse, "environment", environment)
		return lease, nil
	}

	if _, err := snowflake.NormalizeSize(target); err != nil {
		return nil, failure.Configuration(err)
	}

	current, err := s.warehouses.WarehouseSize(ctx, s.warehouse)
	if err != nil {
		return nil, failure.Resize(err)
	}

	lease.Original, lease.Target = current, target

	if snowflake.SameSize(current, target) {
		lease.Outcome = OutcomeUnchanged
		slog.Info("Warehouse already at deployment size", "warehouse", s.warehouse, "size", current)
		return lease, nil
	}

	if err := s.warehouses.ResizeWarehouse(ctx, s.warehouse, target); err != nil {
		return nil, failure.Resize(err)
	}

	lease.Outcome = OutcomeResized
	slog.Info("Resized warehouse", "warehouse", s.warehouse, "from", current, "to", target)
	return lease, nil
}

// Release restores the original size if Acquire resized the warehouse.
// Releasing twice is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.released {
		return nil
	}
	l.released = true

	if l.Outcome != OutcomeResized {
		slog.Debug("Warehouse size unchanged, nothing to revert", "warehouse", l.scaler.warehouse)
		return nil
	}

	if err := l.scaler.warehouses.ResizeWarehouse(ctx, l.scaler.warehouse, l.Original); err != nil {
		return failure.Resize(errors.Wrapf(err, "failed to restore warehouse %s", l.scaler.warehouse))
	}

	slog.Info("Restored warehouse size", "warehouse", l.scaler.warehouse, "size", l.Original)
	return nil
}
