// Package thread derives reply depth and rebuilds reply trees from parent pointers.
// Every walk here is iterative so arbitrarily deep threads cannot exhaust the stack.
package thread

import (
	"errors"

	"github.com/noah-isme/discussion-api/internal/models"
)

var (
	// ErrCycle marks an entry whose parent chain loops back on itself.
	ErrCycle = errors.New("parent chain contains a cycle")
	// ErrMissingParent marks an entry whose parent is not part of the examined set.
	ErrMissingParent = errors.New("parent entry missing")
)

// ComputeDepth returns the depth a new entry gets under parent: 0 for roots.
func ComputeDepth(parent *models.DiscussionEntry) int {
	if parent == nil {
		return 0
	}
	return parent.Depth + 1
}

// DepthCalculator recomputes depths from parent links alone, ignoring stored depth values.
type DepthCalculator struct {
	byID  map[string]*models.DiscussionEntry
	memo  map[string]int
	fault map[string]error
}

// NewDepthCalculator indexes entries for repeated lookups.
func NewDepthCalculator(entries []models.DiscussionEntry) *DepthCalculator {
	byID := make(map[string]*models.DiscussionEntry, len(entries))
	for i := range entries {
		byID[entries[i].ID] = &entries[i]
	}
	return &DepthCalculator{
		byID:  byID,
		memo:  make(map[string]int, len(entries)),
		fault: make(map[string]error),
	}
}

// Depth returns the number of ancestors of entryID. Each entry is walked at most once
// across calls, so resolving a whole topic is linear in its size.
func (d *DepthCalculator) Depth(entryID string) (int, error) {
	if depth, ok := d.memo[entryID]; ok {
		return depth, nil
	}
	if err, ok := d.fault[entryID]; ok {
		return 0, err
	}

	path := make([]string, 0, 8)
	onPath := make(map[string]struct{})
	base := 0
	var walkErr error

	current := entryID
	for {
		if depth, ok := d.memo[current]; ok {
			base = depth + 1
			break
		}
		if err, ok := d.fault[current]; ok {
			walkErr = err
			break
		}
		if _, seen := onPath[current]; seen {
			walkErr = ErrCycle
			break
		}
		entry, ok := d.byID[current]
		if !ok {
			walkErr = ErrMissingParent
			break
		}
		path = append(path, current)
		onPath[current] = struct{}{}
		if entry.ParentID == nil {
			base = 0
			break
		}
		current = *entry.ParentID
	}

	if walkErr != nil {
		for _, id := range path {
			d.fault[id] = walkErr
		}
		return 0, walkErr
	}

	// path runs from entryID up to the topmost resolved ancestor
	for i := len(path) - 1; i >= 0; i-- {
		d.memo[path[i]] = base
		base++
	}
	return d.memo[entryID], nil
}
