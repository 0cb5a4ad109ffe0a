package mathutil

import "math"

var (
	// ImportCorrection rotates engine space into the editing host's space: Rx(+90°).
	ImportCorrection = RotX(math.Pi / 2)

	// ExportCorrection is the inverse of ImportCorrection. Positions, normals
	// and tangents handed back to the engine go through it.
	ExportCorrection = ImportCorrection.Transpose()
)
