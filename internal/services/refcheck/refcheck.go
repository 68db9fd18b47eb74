// Package refcheck validates related-entity id references against the
// database. Every service checks "exists and enabled" the same way, so the
// query lives here once.
package refcheck

import (
	"context"
	"fmt"

	"github.com/mesworks/shopsched/pkg/database"
)

// MissingEnabled returns the ids from the given set that do not resolve to an
// enabled row of the table. The table name is always a compile-time constant
// supplied by a service, never user input.
func MissingEnabled(ctx context.Context, db database.Querier, table string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT id FROM %s WHERE id = ANY($1) AND enabled", table)

	rows, err := db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s references: %w", table, err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []int64
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Dedupe folds duplicate ids preserving first-seen order
func Dedupe(ids []int64) []int64 {
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
