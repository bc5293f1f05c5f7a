package repository

import (
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

var lockingUpdate = clause.Locking{Strength: "UPDATE"}

// sortedUnique returns ids without duplicates in ascending order. Rows are
// always locked in this order so concurrent transactions cannot deadlock.
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
