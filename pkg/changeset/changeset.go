package changeset

import "github.com/pseudomuto/snowkeeper/pkg/script"

type (
	// ChangeSet is the result of a single resolution pass. It is never persisted.
	ChangeSet struct {
		// Versioned scripts in the order they must be applied.
		Versioned []*script.Script

		// Repeatable scripts, including demoted versioned scripts.
		Repeatable *ScriptSet

		// Account level scripts selected by the diff (account mode only).
		Account []*script.Script

		// PostDeployment account scripts taken from the full tree listing
		// (account mode only).
		PostDeployment []*script.Script

		// Ignored holds account level scripts seen in database mode.
		Ignored []*script.Script
	}

	// ScriptSet is a set of scripts keyed by full path that remembers
	// insertion order.
	ScriptSet struct {
		paths   []string
		scripts map[string]*script.Script
	}
)

// NewScriptSet creates an empty ScriptSet.
func NewScriptSet() *ScriptSet {
	return &ScriptSet{scripts: make(map[string]*script.Script)}
}

// Add inserts s unless a script with the same full path is present. It
// reports whether s was added.
func (s *ScriptSet) Add(sc *script.Script) bool {
	if _, ok := s.scripts[sc.FullPath]; ok {
		return false
	}

	s.paths = append(s.paths, sc.FullPath)
	s.scripts[sc.FullPath] = sc
	return true
}

// Contains reports whether a script with the given full path is present.
func (s *ScriptSet) Contains(path string) bool {
	_, ok := s.scripts[path]
	return ok
}

// Len returns the number of scripts in the set.
func (s *ScriptSet) Len() int { return len(s.paths) }

// Scripts returns the scripts in insertion order.
func (s *ScriptSet) Scripts() []*script.Script {
	out := make([]*script.Script, 0, len(s.paths))
	for _, p := range s.paths {
		out = append(out, s.scripts[p])
	}

	return out
}

// Scripts returns every selected script in application order: versioned,
// account, repeatable and finally post deployment scripts.
func (c *ChangeSet) Scripts() []*script.Script {
	out := make([]*script.Script, 0, c.Len())
	out = append(out, c.Versioned...)
	out = append(out, c.Account...)
	out = append(out, c.Repeatable.Scripts()...)
	out = append(out, c.PostDeployment...)
	return out
}

// Len returns the number of selected scripts.
func (c *ChangeSet) Len() int {
	return len(c.Versioned) + len(c.Account) + c.Repeatable.Len() + len(c.PostDeployment)
}

// Empty reports whether nothing was selected.
func (c *ChangeSet) Empty() bool { return c.Len() == 0 }
