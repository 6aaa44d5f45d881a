package device

import "math"

// Geometry maps normalized display coordinates onto the device. Width and
// Height are the natural (rotation 0) display size; the panel axes always
// follow the natural orientation.
type Geometry struct {
	Width, Height int

	// PanelMaxX and PanelMaxY are the touch axis maxima; zero means the
	// panel reports display pixels.
	PanelMaxX, PanelMaxY int

	// Rotation in quarter turns, 0..3.
	Rotation int

	// Pressure reported for every contact; zero omits it.
	Pressure int

	// MaxContacts is the number of slots the panel accepts; zero means
	// unknown.
	MaxContacts int
}

// DisplaySize returns the display size in the current orientation.
func (g Geometry) DisplaySize() (int, int) {
	if g.Rotation%2 == 1 {
		return g.Height, g.Width
	}
	return g.Width, g.Height
}

// MinExtent is the shorter display side in pixels.
func (g Geometry) MinExtent() int {
	w, h := g.DisplaySize()
	if w < h {
		return w
	}
	return h
}

// Display converts a normalized point to display pixels in the current
// orientation.
func (g Geometry) Display(nx, ny float64) (int, int) {
	w, h := g.DisplaySize()
	return int(math.Round(clamp01(nx) * float64(w))), int(math.Round(clamp01(ny) * float64(h)))
}

// Normalized converts display pixels back to a normalized point.
func (g Geometry) Normalized(x, y float64) (float64, float64) {
	w, h := g.DisplaySize()
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	return clamp01(x / float64(w)), clamp01(y / float64(h))
}

// Panel converts a normalized display point to touch panel coordinates.
func (g Geometry) Panel(nx, ny float64) (int32, int32) {
	nx, ny = clamp01(nx), clamp01(ny)

	var px, py float64
	switch g.Rotation % 4 {
	case 1:
		px, py = 1-ny, nx
	case 2:
		px, py = 1-nx, 1-ny
	case 3:
		px, py = ny, 1-nx
	default:
		px, py = nx, ny
	}

	maxX, maxY := g.PanelMaxX, g.PanelMaxY
	if maxX <= 0 {
		maxX = g.Width
	}
	if maxY <= 0 {
		maxY = g.Height
	}
	return int32(math.Round(px * float64(maxX))), int32(math.Round(py * float64(maxY)))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
