package monitor

import (
	"errors"
	"fmt"

	"github.com/ja7ad/procmon/pkg/system/inspect"
)

// TreeEntry is a root process and the descendants found when it was resolved.
// Members[0] is always Root.
type TreeEntry struct {
	Root    inspect.Process
	Members []inspect.Process
}

// TreeCache memoizes root handles and their process trees per root PID.
// It is owned by the sampler goroutine and is not safe for concurrent use.
type TreeCache struct {
	inspector inspect.Inspector
	roots     map[int]inspect.Process
	trees     map[int]*TreeEntry
}

// NewTreeCache returns an empty cache resolving through in.
func NewTreeCache(in inspect.Inspector) *TreeCache {
	return &TreeCache{
		inspector: in,
		roots:     make(map[int]inspect.Process),
		trees:     make(map[int]*TreeEntry),
	}
}

// Resolve returns the cached tree for pid, building it on first use. The
// descendant set is not re-walked until the cache is cleared, so children
// spawned in between are missed until then.
//
// A root that no longer exists yields an error wrapping
// inspect.ErrProcessNotFound.
func (c *TreeCache) Resolve(pid int) (*TreeEntry, error) {
	root, ok := c.roots[pid]
	if !ok {
		p, err := c.inspector.Open(pid)
		if err != nil {
			return nil, fmt.Errorf("resolve pid %d: %w", pid, err)
		}
		root = p
		c.roots[pid] = root
	}

	if e, ok := c.trees[pid]; ok {
		return e, nil
	}

	members, err := walk(root)
	if err != nil {
		c.Forget(pid)
		return nil, fmt.Errorf("resolve pid %d: %w", pid, err)
	}
	e := &TreeEntry{Root: root, Members: members}
	c.trees[pid] = e
	return e, nil
}

// Clear drops every cached handle and tree.
func (c *TreeCache) Clear() {
	clear(c.roots)
	clear(c.trees)
}

// Forget drops the cached handle and tree for one root.
func (c *TreeCache) Forget(pid int) {
	delete(c.roots, pid)
	delete(c.trees, pid)
}

// Len returns the number of roots with a cached handle.
func (c *TreeCache) Len() int { return len(c.roots) }

// walk lists root followed by all its descendants, breadth first. Children
// that vanish mid-walk are skipped; only the root disappearing is an error.
func walk(root inspect.Process) ([]inspect.Process, error) {
	members := []inspect.Process{root}
	seen := map[int]struct{}{root.PID(): {}}

	for i := 0; i < len(members); i++ {
		kids, err := members[i].Children()
		if err != nil {
			if i == 0 && errors.Is(err, inspect.ErrProcessNotFound) {
				return nil, err
			}
			continue
		}
		for _, k := range kids {
			if _, dup := seen[k.PID()]; dup {
				continue
			}
			seen[k.PID()] = struct{}{}
			members = append(members, k)
		}
	}
	return members, nil
}
