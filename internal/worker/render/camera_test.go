package render

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		name       string
		startAngle float64
		endAngle   float64
		angleStep  float64
		want       int
	}{
		{name: "full sweep step 12", startAngle: 0, endAngle: 360, angleStep: 12, want: 30},
		{name: "full sweep step 10", startAngle: 0, endAngle: 360, angleStep: 10, want: 36},
		{name: "non-dividing step rounds up", startAngle: 0, endAngle: 100, angleStep: 30, want: 4},
		{name: "partial sweep", startAngle: 90, endAngle: 270, angleStep: 45, want: 4},
		{name: "zero step", startAngle: 0, endAngle: 360, angleStep: 0, want: 0},
		{name: "empty range", startAngle: 180, endAngle: 180, angleStep: 10, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrameCount(tt.startAngle, tt.endAngle, tt.angleStep))
		})
	}
}

func TestCameraDistance(t *testing.T) {
	t.Run("keeps bounding sphere in frame with padding", func(t *testing.T) {
		boxSize := Vec3{X: 2, Y: 2, Z: 2}
		diagonal := math.Sqrt(12)
		radius := diagonal / 2
		fov := 45.0

		want := radius / math.Tan(fov*math.Pi/360) * 1.10
		got := CameraDistance(boxSize, fov, 0.1)

		assert.InDelta(t, want, got, 1e-9)
	})

	t.Run("tiny model clamps to base distance", func(t *testing.T) {
		boxSize := Vec3{X: 0.001, Y: 0.001, Z: 0.001}

		got := CameraDistance(boxSize, 45, 3.0)

		assert.Equal(t, 3.0, got)
	})

	t.Run("wider fov needs less distance", func(t *testing.T) {
		boxSize := Vec3{X: 2, Y: 2, Z: 2}

		narrow := CameraDistance(boxSize, 30, 0.1)
		wide := CameraDistance(boxSize, 90, 0.1)

		assert.Greater(t, narrow, wide)
	})
}

func TestOrbitPosition(t *testing.T) {
	center := Vec3{X: 1, Y: 0, Z: -1}

	t.Run("angle zero sits on positive x", func(t *testing.T) {
		pos := OrbitPosition(center, 0, 1.5, 4)

		assert.InDelta(t, center.X+4, pos.X, 1e-9)
		assert.InDelta(t, center.Y+1.5, pos.Y, 1e-9)
		assert.InDelta(t, center.Z, pos.Z, 1e-9)
	})

	t.Run("angle ninety sits on positive z", func(t *testing.T) {
		pos := OrbitPosition(center, 90, 1.5, 4)

		assert.InDelta(t, center.X, pos.X, 1e-9)
		assert.InDelta(t, center.Z+4, pos.Z, 1e-9)
	})

	t.Run("constant distance all around", func(t *testing.T) {
		for angle := 0.0; angle < 360; angle += 12 {
			pos := OrbitPosition(center, angle, 0, 4)
			dx := pos.X - center.X
			dz := pos.Z - center.Z
			assert.InDelta(t, 4.0, math.Sqrt(dx*dx+dz*dz), 1e-9)
		}
	})
}
