package calib

import "math"

// deadZone is the magnitude below which a vector is treated as zero.
const deadZone = 0.001

// Normalize scales (vx, vy) to length factor. Vectors shorter than the dead
// zone around the anchor collapse to (0, 0).
func Normalize(vx, vy, factor float64) (float64, float64) {
	m := math.Sqrt(vx*vx + vy*vy)
	if m < deadZone {
		return 0, 0
	}
	return vx * factor / m, vy * factor / m
}

// Aim returns the unit vector from anchor towards p.
func Aim(anchor, p Point) (float64, float64) {
	return Normalize(p.X-anchor.X, p.Y-anchor.Y, 1)
}

// AspectTop derives the top edge from the bottom edge and window width so the
// window matches a device resolution of resW x resH.
func AspectTop(left, right, bottom, resW, resH int) int {
	if resW <= 0 {
		return bottom
	}
	aspect := float64(resH) / float64(resW)
	return int(math.Round(float64(bottom) - float64(right-left)*aspect))
}
