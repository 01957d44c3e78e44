// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

// The read-strategy selector is pure policy: it looks at the file size and
// returns a plan describing how much of the file to materialize up front.
// The I/O layer in io.go consumes the plan; the selector itself never touches
// a file, which keeps the boundary behavior trivially testable.

// PlanKind selects one of the three read strategies.
type PlanKind int

const (
	// PlanDirectMap materializes the whole file and operates on the slice.
	PlanDirectMap PlanKind = iota
	// PlanHybrid materializes the leading quarter of the file and issues at
	// most one precise follow-up read if the segment extends past it.
	PlanHybrid
	// PlanSeekProbe reads a small probe window, locates the segment inside
	// it, and issues at most one further read sized to the segment.
	PlanSeekProbe
)

func (k PlanKind) String() string {
	switch k {
	case PlanDirectMap:
		return "DirectMap"
	case PlanHybrid:
		return "Hybrid"
	default:
		return "SeekProbe"
	}
}

const (
	defaultSmallThreshold = 8 << 20  // 8 MiB
	defaultLargeThreshold = 32 << 20 // 32 MiB
	defaultProbeLen       = 64 << 10 // 64 KiB

	// Segments larger than this are windowed rather than materialized in
	// full. A RAW file is one big TIFF segment whose directories sit up
	// front; the bulk raster payload never needs to be in memory.
	defaultMaxSegmentLen = 10 << 20
)

// Thresholds configures the strategy boundaries. The zero value means
// defaults (8 MiB / 32 MiB, 10 MiB guard).
type Thresholds struct {
	Small int64
	Large int64

	// MaxSegment bounds how much of a located segment is materialized.
	// Zero means the 10 MiB default.
	MaxSegment int64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.Small == 0 {
		t.Small = defaultSmallThreshold
	}
	if t.Large == 0 {
		t.Large = defaultLargeThreshold
	}
	if t.MaxSegment == 0 {
		t.MaxSegment = defaultMaxSegmentLen
	}
	return t
}

// ReadPlan describes the up-front reads the I/O layer should perform.
type ReadPlan struct {
	Kind PlanKind

	// InitialLen is the length of the leading read. Zero for PlanSeekProbe,
	// where ProbeLen applies instead.
	InitialLen int64

	// ProbeLen is the probe window for PlanSeekProbe.
	ProbeLen int64

	// MaxSegmentLen bounds how much of the located segment is materialized.
	// A longer segment is windowed to this length; tag values stored past
	// the window surface as per-tag diagnostics during decode.
	MaxSegmentLen int64
}

// SelectReadStrategy picks a plan for a file of the given size.
//
//	size <= Small:  map the whole file.
//	size <= Large:  map the leading quarter.
//	otherwise:      probe window only; the bulk payload is never materialized.
func SelectReadStrategy(size int64, t Thresholds) ReadPlan {
	t = t.withDefaults()

	switch {
	case size <= t.Small:
		return ReadPlan{
			Kind:          PlanDirectMap,
			InitialLen:    size,
			MaxSegmentLen: t.MaxSegment,
		}
	case size <= t.Large:
		return ReadPlan{
			Kind:          PlanHybrid,
			InitialLen:    size / 4,
			MaxSegmentLen: t.MaxSegment,
		}
	default:
		return ReadPlan{
			Kind:          PlanSeekProbe,
			ProbeLen:      defaultProbeLen,
			MaxSegmentLen: t.MaxSegment,
		}
	}
}
