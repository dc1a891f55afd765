// Package changeset works out which change scripts a build must apply.
//
// Resolution combines three inputs:
//
//   - the diff service's list of files added, edited or renamed between the
//     last successful revision and the current one
//   - the local file tree under the root folder (deleted files drop out here)
//   - the order file, which sequences versioned scripts by folder
//
// The result is a ChangeSet holding an ordered list of versioned scripts and
// an insertion ordered set of repeatable scripts. Versioned scripts that live
// in a folder the order file doesn't mention are demoted to the repeatable
// set rather than applied in an arbitrary position.
//
// Example:
//
//	resolver := changeset.NewResolver(changeset.Config{
//		Fs:         afero.NewOsFs(),
//		Diff:       devopsClient,
//		Classifier: script.NewClassifier(),
//		Order:      orderFile,
//	})
//
//	set, err := resolver.Resolve(ctx, changeset.Request{
//		Root:    "/build/sources",
//		Base:    lastSuccessfulCommit,
//		Target:  headCommit,
//		Mode:    changeset.ModeDatabase,
//		Subtree: "/coEDW/",
//	})
package changeset
