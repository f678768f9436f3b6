// Package homography estimates the planar projective transform between two
// point sets and classifies correspondences as inliers or outliers.
package homography

import (
	"thumblocate/pkg/geometry"
)

// MinCorrespondences is the minimum number of point pairs required to
// estimate a homography.
const MinCorrespondences = 4

// Matrix is a 3x3 projective transform mapping homogeneous 2D points from
// template space to source space.
type Matrix [3][3]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Apply maps a point through the homography using perspective division.
// Points near the plane at infinity map to non-finite coordinates; callers
// should check IsFinite on the result.
func (m Matrix) Apply(p geometry.Point2D) geometry.Point2D {
	w := m[2][0]*p.X + m[2][1]*p.Y + m[2][2]
	x := m[0][0]*p.X + m[0][1]*p.Y + m[0][2]
	y := m[1][0]*p.X + m[1][1]*p.Y + m[1][2]
	return geometry.Point2D{X: x / w, Y: y / w}
}

// Mul returns the matrix product m * other.
func (m Matrix) Mul(other Matrix) Matrix {
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += m[i][k] * other[k][j]
			}
		}
	}
	return out
}

// scale divides every entry so the bottom-right entry equals 1 when possible.
func (m Matrix) normalized() Matrix {
	d := m[2][2]
	if d > -1e-12 && d < 1e-12 {
		return m
	}
	var out Matrix
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][j] / d
		}
	}
	return out
}
