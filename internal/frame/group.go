package frame

import (
	"fmt"
	"sort"
	"strings"
)

// GroupBy groups rows by the key columns and reduces each value column.
// The result is indexed by the keys in ascending key order.
func GroupBy(f *Frame, keys, values []string, agg Agg) (*Frame, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("groupby needs at least one key")
	}
	keyCols := make([]*Column, len(keys))
	exclude := make(map[string]bool, len(keys))
	for i, name := range keys {
		c, ok := f.lookup(name)
		if !ok {
			return nil, fmt.Errorf("groupby key %q not found (have %v)", name, f.Names())
		}
		keyCols[i] = c
		exclude[name] = true
	}
	valCols, err := valueColumns(f, values, exclude, agg)
	if err != nil {
		return nil, err
	}

	slot := make(map[string]int)
	var reps []int
	var groups [][]int
	var sb strings.Builder
	for r := 0; r < f.n; r++ {
		sb.Reset()
		skip := false
		for _, k := range keyCols {
			// rows with a missing key are dropped, as pandas does
			if k.IsNull(r) {
				skip = true
				break
			}
			sb.WriteString(k.key(r))
			sb.WriteByte(0)
		}
		if skip {
			continue
		}
		key := sb.String()
		g, ok := slot[key]
		if !ok {
			g = len(groups)
			slot[key] = g
			reps = append(reps, r)
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], r)
	}

	order := seq(0, len(groups))
	sort.SliceStable(order, func(a, b int) bool {
		for _, k := range keyCols {
			if cmp := k.compare(reps[order[a]], reps[order[b]]); cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	sortedReps := make([]int, len(order))
	sortedGroups := make([][]int, len(order))
	for i, g := range order {
		sortedReps[i] = reps[g]
		sortedGroups[i] = groups[g]
	}

	index := make([]*Column, len(keyCols))
	for i, k := range keyCols {
		index[i] = k.Take(sortedReps)
	}
	cols := make([]*Column, len(valCols))
	for i, c := range valCols {
		if cols[i], err = reduceColumn(c, agg, sortedGroups); err != nil {
			return nil, err
		}
	}
	return build(index, cols, nil)
}
