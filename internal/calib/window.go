// Package calib maps desktop screen pixels onto device-normalized
// coordinates and derives aim vectors from them.
package calib

// Point is a position in normalized device space, 0..1 on both axes.
type Point struct {
	X, Y float64
}

// Rect is a calibrated window in screen pixels.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Width is Right-Left.
func (r Rect) Width() int { return r.Right - r.Left }

// Height is Bottom-Top.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Window holds the two calibration corners. The zero value is uncalibrated.
type Window struct {
	left, top     int
	right, bottom int
	hasTopLeft    bool
	hasBotRight   bool

	width, height int
}

// NewWindow returns a window pre-calibrated to r.
func NewWindow(r Rect) *Window {
	w := &Window{}
	w.MarkTopLeft(r.Left, r.Top)
	w.MarkBottomRight(r.Right, r.Bottom)
	return w
}

// MarkTopLeft stores the top-left corner.
func (w *Window) MarkTopLeft(x, y int) {
	w.left, w.top = x, y
	w.hasTopLeft = true
	w.recompute()
}

// MarkBottomRight stores the bottom-right corner.
func (w *Window) MarkBottomRight(x, y int) {
	w.right, w.bottom = x, y
	w.hasBotRight = true
	w.recompute()
}

// recompute derives the extents once both corners are known.
func (w *Window) recompute() {
	if !w.hasTopLeft || !w.hasBotRight {
		return
	}
	w.width = w.right - w.left
	w.height = w.bottom - w.top
}

// Calibrated reports whether both corners are set and span a positive area.
func (w *Window) Calibrated() bool {
	return w.hasTopLeft && w.hasBotRight && w.width > 0 && w.height > 0
}

// Rect returns the stored corners.
func (w *Window) Rect() Rect {
	return Rect{Left: w.left, Top: w.top, Right: w.right, Bottom: w.bottom}
}

// Size returns the derived width and height.
func (w *Window) Size() (width, height int) {
	return w.width, w.height
}

// ToNormalized maps a screen pixel into the window. It reports false for
// points on or outside any edge, and for every point while uncalibrated.
func (w *Window) ToNormalized(x, y int) (Point, bool) {
	if !w.Calibrated() {
		return Point{}, false
	}
	if x <= w.left || x >= w.right || y <= w.top || y >= w.bottom {
		return Point{}, false
	}
	return Point{
		X: float64(x-w.left) / float64(w.width),
		Y: float64(y-w.top) / float64(w.height),
	}, true
}
