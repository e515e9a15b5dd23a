package render

import "math"

// paddingFactor keeps the bounding sphere comfortably inside the frame.
const paddingFactor = 1.10

// Vec3 is a point or size in scene space.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FrameCount returns the number of orbit frames for a sweep from startAngle
// to endAngle (degrees) in steps of angleStep.
func FrameCount(startAngle, endAngle, angleStep float64) int {
	if angleStep <= 0 || endAngle <= startAngle {
		return 0
	}
	return int(math.Ceil((endAngle - startAngle) / angleStep))
}

// CameraDistance computes how far the camera must sit so the whole bounding
// sphere of a box of size boxSize stays in frame at any orbit angle. The
// result never drops below baseDistance so tiny models keep a sane framing.
func CameraDistance(boxSize Vec3, fovDegrees, baseDistance float64) float64 {
	diagonal := math.Sqrt(boxSize.X*boxSize.X + boxSize.Y*boxSize.Y + boxSize.Z*boxSize.Z)
	radius := diagonal / 2

	fovRad := fovDegrees * math.Pi / 180
	distance := radius / math.Tan(fovRad/2) * paddingFactor

	if distance < baseDistance {
		return baseDistance
	}
	return distance
}

// OrbitPosition places the camera at angleDegrees around the Y axis of
// center, at the given elevation and distance.
func OrbitPosition(center Vec3, angleDegrees, height, distance float64) Vec3 {
	rad := angleDegrees * math.Pi / 180
	return Vec3{
		X: center.X + distance*math.Cos(rad),
		Y: center.Y + height,
		Z: center.Z + distance*math.Sin(rad),
	}
}
