package export

import (
	"fmt"
	"strings"

	"warpresample/pkg/geom"
)

// Policy selects how the output raster is split across workers. Both
// policies write every element exactly once and produce identical rasters.
type Policy int

const (
	// PolicyIter gives worker i the elements i, i+T, i+2T, ... of the flat
	// iteration order.
	PolicyIter Policy = iota

	// PolicySlice splits the highest dimension with extent > 1 into T
	// contiguous ranges.
	PolicySlice
)

func (p Policy) String() string {
	switch p {
	case PolicyIter:
		return "iter"
	case PolicySlice:
		return "slice"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "iter" or "slice".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iter", "iteration", "":
		return PolicyIter, nil
	case "slice":
		return PolicySlice, nil
	default:
		return 0, fmt.Errorf("%w: unknown parallelization policy %q", ErrInvalidConfig, s)
	}
}

// SplitDimension returns the highest dimension of itvl whose extent exceeds
// one, or 0 when every extent is one.
func SplitDimension(itvl geom.Interval) int {
	for d := itvl.NumDims() - 1; d >= 0; d-- {
		if itvl.Dimension(d) > 1 {
			return d
		}
	}
	return 0
}

// SplitPoints divides [0, n) into parts ranges. Boundaries are cumulative sums
// of n/parts and the last boundary is pinned to n, so the final range absorbs
// the remainder. When parts exceeds n, the leading ranges are empty.
func SplitPoints(n int64, parts int) []int64 {
	points := make([]int64, parts+1)
	del := n / int64(parts)
	for i := 1; i < parts; i++ {
		points[i] = points[i-1] + del
	}
	points[parts] = n
	return points
}

// Partition is the share of one worker under PolicySlice.
type Partition struct {
	Worker int
	// Start and End are relative to the interval minimum along Dim.
	Start, End int64
	Dim        int
	Interval   geom.Interval
}

// Empty reports whether the partition covers no elements.
func (p Partition) Empty() bool { return p.Start >= p.End }

// SlicePartitions splits itvl into parts contiguous partitions along
// SplitDimension(itvl). Empty partitions carry a zero Interval.
func SlicePartitions(itvl geom.Interval, parts int) []Partition {
	dim := SplitDimension(itvl)
	points := SplitPoints(itvl.Dimension(dim), parts)
	out := make([]Partition, parts)
	for i := range out {
		p := Partition{Worker: i, Start: points[i], End: points[i+1], Dim: dim}
		if !p.Empty() {
			p.Interval = itvl.SubInterval(dim, p.Start, p.End)
		}
		out[i] = p
	}
	return out
}
