// Package failure classifies the fatal errors a deployment can end with.
//
// Every error that aborts a run is wrapped in an *Error carrying one of four
// kinds. The kind tells the caller how far the run got:
//
//   - KindConfiguration: nothing was executed
//   - KindResolution: the change set could not be computed, nothing was executed
//   - KindApplication: a script or its audit row failed; earlier scripts stay applied
//   - KindResize: the warehouse could not be resized or reverted
//
// Example:
//
//	if err := deployer.Run(ctx); err != nil {
//		if failure.KindOf(err) == failure.KindApplication {
//			var ferr *failure.Error
//			errors.As(err, &ferr)
//			fmt.Println("broken script:", ferr.Path)
//		}
//	}
package failure

import (
	"errors"
	"fmt"
)

const (
	KindUnknown       Kind = ""
	KindConfiguration Kind = "configuration"
	KindResolution    Kind = "resolution"
	KindApplication   Kind = "application"
	KindResize        Kind = "resize"
)

type (
	// Kind identifies one of the fatal error categories.
	Kind string

	// Error is a classified deployment error. Path is set for application
	// errors and names the script that failed.
	Error struct {
		Kind Kind
		Path string
		Err  error
	}
)

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error in %s: %v", e.Kind, e.Path, e.Err)
	}

	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets github.com/pkg/errors.Cause walk through classified errors.
func (e *Error) Cause() error { return e.Err }

// Configuration wraps err as a configuration error.
func Configuration(err error) error { return wrap(KindConfiguration, "", err) }

// Resolution wraps err as a change set resolution error.
func Resolution(err error) error { return wrap(KindResolution, "", err) }

// Application wraps err as an error applying the script at path.
func Application(path string, err error) error { return wrap(KindApplication, path, err) }

// Resize wraps err as a warehouse resize error.
func Resize(err error) error { return wrap(KindResize, "", err) }

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var ferr *Error
	if errors.As(err, &ferr) {
		return ferr.Kind
	}

	return KindUnknown
}

func wrap(kind Kind, path string, err error) error {
	if err == nil {
		return nil
	}

	// keep the first classification
	var ferr *Error
	if errors.As(err, &ferr) {
		return err
	}

	return &Error{Kind: kind, Path: path, Err: err}
}
