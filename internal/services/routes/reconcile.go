// Package routes implements the generic reconciliation of an owner entity's
// ordered association collection against a caller-supplied target-id set.
// The same diff drives line work center routes, work center operation routes,
// product operation routes and line product memberships, so the logic lives
// here once instead of being re-derived per service with drifting defaults.
package routes

// Spec describes how to read and build rows of a concrete route type
type Spec[R any] struct {
	// TargetID extracts the related-entity id a row points at
	TargetID func(R) int64
	// Order extracts a row's sequence position. Nil means the collection is
	// an unordered membership set and no numbering is performed.
	Order func(R) int
	// NewRow builds a fresh association row for a target id. The order
	// argument is 0 when Order is nil.
	NewRow func(targetID int64, order int) R
}

// Result is the outcome of a reconciliation diff. Kept rows are the existing
// rows left untouched (their identity and order are preserved), Added rows are
// new, Removed rows must be deleted. The caller applies Added and Removed to
// the store; Kept rows are never rewritten.
type Result[R any] struct {
	Kept    []R
	Added   []R
	Removed []R
}

// Changed reports whether the diff requires any writes
func (r Result[R]) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Rows returns the full post-reconciliation collection (kept then added)
func (r Result[R]) Rows() []R {
	rows := make([]R, 0, len(r.Kept)+len(r.Added))
	rows = append(rows, r.Kept...)
	rows = append(rows, r.Added...)
	return rows
}

// Reconcile diffs an existing association collection against the desired
// target-id set. Duplicate target ids are folded, first occurrence wins.
// Rows whose target is absent from the desired set are removed, targets not
// yet associated are added, and rows present in both are kept untouched.
// New ordered rows are numbered from max(existing order)+1 in folded input
// order. An empty target set removes everything; rejecting an empty set for
// mandatory associations is the caller's validation concern, never this
// function's.
func Reconcile[R any](existing []R, targetIDs []int64, spec Spec[R]) Result[R] {
	desired := dedupe(targetIDs)

	desiredSet := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}

	var result Result[R]

	maxOrder := 0
	existingTargets := make(map[int64]struct{}, len(existing))
	for _, row := range existing {
		id := spec.TargetID(row)
		existingTargets[id] = struct{}{}
		if spec.Order != nil && spec.Order(row) > maxOrder {
			maxOrder = spec.Order(row)
		}
		if _, ok := desiredSet[id]; ok {
			result.Kept = append(result.Kept, row)
		} else {
			result.Removed = append(result.Removed, row)
		}
	}

	nextOrder := maxOrder + 1
	for _, id := range desired {
		if _, ok := existingTargets[id]; ok {
			continue
		}
		order := 0
		if spec.Order != nil {
			order = nextOrder
			nextOrder++
		}
		result.Added = append(result.Added, spec.NewRow(id, order))
	}

	return result
}

// dedupe folds duplicate ids preserving first-seen order
func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
