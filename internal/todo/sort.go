package todo

import "sort"

// SortForDisplay returns a copy of items ordered for rendering: open tasks
// before completed ones, then by due date with undated tasks last. Equal
// keys keep their storage order.
func SortForDisplay(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return displayLess(out[i].Task, out[j].Task)
	})
	return out
}

func displayLess(a, b Task) bool {
	if a.Completed != b.Completed {
		return !a.Completed
	}
	switch {
	case a.Due.Valid && b.Due.Valid:
		return a.Due.Time.Before(b.Due.Time)
	case a.Due.Valid != b.Due.Valid:
		return a.Due.Valid
	default:
		return false
	}
}
