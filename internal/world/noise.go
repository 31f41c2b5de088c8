package world

import "math/rand"

// NewNoiseGrid builds a rolling heightfield from a seed. The same seed
// always produces the same terrain, so runs on it stay reproducible.
// The grid is centered on the world origin; amplitude is the
// peak-to-trough height after smoothing.
func NewNoiseGrid(seed int64, rows, cols int, cell, amplitude float64) Grid {
	if rows < 2 || cols < 2 || cell <= 0 {
		return Grid{}
	}

	rng := rand.New(rand.NewSource(seed))

	h := make([][]float64, rows)
	for r := range h {
		h[r] = make([]float64, cols)
		for c := range h[r] {
			h[r][c] = rng.Float64()
		}
	}

	// Two box-blur passes turn white noise into drivable rolling ground.
	h = smooth(h)
	h = smooth(h)

	lo, hi := h[0][0], h[0][0]
	for r := range h {
		for c := range h[r] {
			if h[r][c] < lo {
				lo = h[r][c]
			}
			if h[r][c] > hi {
				hi = h[r][c]
			}
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}
	for r := range h {
		for c := range h[r] {
			h[r][c] = (h[r][c] - lo) / span * amplitude
		}
	}

	return Grid{
		Heights: h,
		Cell:    cell,
		OriginX: -cell * float64(cols-1) / 2,
		OriginZ: -cell * float64(rows-1) / 2,
	}
}

// smooth applies a 3x3 box blur with clamped borders.
func smooth(h [][]float64) [][]float64 {
	rows := len(h)
	cols := len(h[0])
	out := make([][]float64, rows)
	for r := range out {
		out[r] = make([]float64, cols)
		for c := range out[r] {
			var sum float64
			var n int
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					rr, cc := r+dr, c+dc
					if rr < 0 || rr >= rows || cc < 0 || cc >= cols {
						continue
					}
					sum += h[rr][cc]
					n++
				}
			}
			out[r][c] = sum / float64(n)
		}
	}
	return out
}
