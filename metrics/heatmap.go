package metrics

// BuildKeyHeatmap folds a backend's per-slot occupancy into a rows x cols
// matrix for the tick's key_heatmap field: consecutive runs of slots map to
// one cell, row-major, each cell counting the live entries in its span.
// Returns nil if the grid is degenerate or there are no slots to fold.
func BuildKeyHeatmap(occupied []bool, rows, cols int) *KeyHeatmap {
	if rows <= 0 || cols <= 0 || len(occupied) == 0 {
		return nil
	}

	cells := rows * cols
	span := (len(occupied) + cells - 1) / cells

	matrix := make([][]uint64, rows)
	for r := range matrix {
		matrix[r] = make([]uint64, cols)
	}

	var max, total uint64
	for i, occ := range occupied {
		if !occ {
			continue
		}
		cell := i / span
		r, c := cell/cols, cell%cols
		matrix[r][c]++
		total++
		if matrix[r][c] > max {
			max = matrix[r][c]
		}
	}

	return &KeyHeatmap{
		Rows:          rows,
		Cols:          cols,
		Matrix:        matrix,
		Max:           max,
		Total:         total,
		SlotSpan:      span,
		OriginalSlots: len(occupied),
	}
}
