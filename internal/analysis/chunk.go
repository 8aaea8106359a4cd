package analysis

// Chunk splits items into consecutive groups of at most size items.
// Every group but the last holds exactly size items. Groups share backing
// storage with items but are capped so appending to one cannot clobber the
// next. A size below 1 is treated as 1.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}

	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}
