package models

import (
	"image"
)

// Slice represents a single 2D image of a stack with metadata
type Slice struct {
	// Image is the decoded slice image
	Image image.Image

	// Index is the position of this slice in the sorted sequence
	Index int

	// Filename is the original filename of the slice
	Filename string

	// Position is the physical position of the slice along the stacking axis
	Position float64
}

// VoxelSize is the physical extent of one voxel along x, y and z
type VoxelSize struct {
	X, Y, Z float64

	// Unit names the physical unit, e.g. "mm" or "um"
	Unit string
}

// Axis identifies one of the three volume axes
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "z"
	}
}

// ParseAxis accepts "x", "y" or "z"
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "x", "X":
		return AxisX, true
	case "y", "Y":
		return AxisY, true
	case "z", "Z":
		return AxisZ, true
	}
	return 0, false
}
