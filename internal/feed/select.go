package feed

import (
	"sort"

	"github.com/samber/lo"
)

// Select keeps records with ID > cursor, ordered oldest first, and returns
// the advanced cursor max(cursor, ids...). The input slice is not modified.
func Select(records []Record, cursor int64) ([]Record, int64) {
	fresh := lo.Filter(records, func(r Record, _ int) bool { return r.ID > cursor })
	sort.SliceStable(fresh, func(i, j int) bool { return fresh[i].ID < fresh[j].ID })

	next := cursor
	if len(fresh) > 0 {
		next = fresh[len(fresh)-1].ID
	}
	return fresh, next
}
