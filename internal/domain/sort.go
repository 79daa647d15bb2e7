package domain

import "sort"

// SortByLastUsedDesc orders records most-recently-used first, in place. The
// sort is stable: records with equal timestamps keep their decode order.
func SortByLastUsedDesc(records []TankRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastUsed.After(records[j].LastUsed)
	})
}
