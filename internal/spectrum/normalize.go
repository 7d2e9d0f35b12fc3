package spectrum

// Axis normalization removes instrumental gain striping by equalizing the
// mask-weighted mean of every row (or column) to the overall mean of those
// means. The mask selects which positions along the orthogonal axis count
// toward a row's level; a nil mask weights all positions equally. Relative
// structure within each row is preserved because every cell of a row is
// scaled by the same factor.

// normalizeRows rescales each row of data in place so all rows share the
// same mask-weighted mean. mask, when non-nil, must have one weight per
// column. Rows whose weighted mean is exactly zero are left untouched.
func normalizeRows(data [][]float64, mask []float64) {
	if len(data) == 0 {
		return
	}

	means := make([]float64, len(data))
	var overall float64
	for i, row := range data {
		means[i] = maskedMean(row, mask)
		overall += means[i]
	}
	overall /= float64(len(data))

	for i, row := range data {
		if means[i] == 0 {
			continue
		}
		scale := overall / means[i]
		for j := range row {
			row[j] *= scale
		}
	}
}

// normalizeColumns is normalizeRows on the transposed matrix. mask, when
// non-nil, must have one weight per row.
func normalizeColumns(data [][]float64, mask []float64) {
	t := transpose(data)
	normalizeRows(t, mask)
	for i, row := range transpose(t) {
		copy(data[i], row)
	}
}

// maskedMean computes sum(mask*row)/len(row): the mask scales contributions
// but the divisor stays the full row length, matching the levels the
// normalization was calibrated against.
func maskedMean(row, mask []float64) float64 {
	var sum float64
	if mask == nil {
		for _, v := range row {
			sum += v
		}
	} else {
		for j, v := range row {
			sum += mask[j] * v
		}
	}
	return sum / float64(len(row))
}

func transpose(data [][]float64) [][]float64 {
	if len(data) == 0 {
		return nil
	}
	out := make([][]float64, len(data[0]))
	for j := range out {
		out[j] = make([]float64, len(data))
		for i := range data {
			out[j][i] = data[i][j]
		}
	}
	return out
}
