// Copyright 2026 The mediameta authors
// SPDX-License-Identifier: MIT

package mediameta

import (
	"fmt"
	"math"
)

// Derived values land in their own namespace so they never shadow a stored
// tag of the same name.
const derivedNamespace = "Composite"

// addDerivedValues runs after decoding and adds values computed from the
// stored tags. Each value is added only when every input it needs is present
// and sane; missing or zero inputs skip the value silently.
func addDerivedValues(meta *ParsedMetadata) {
	d := deriver{meta: meta}

	exposure := d.float("IFD0/ExifIFD/ExposureTime")
	if exposure == 0 {
		exposure = d.float("IFD0/ExifIFD/ShutterSpeedValue")
	}
	if exposure > 0 {
		d.add("ShutterSpeed", formatExposure(exposure))
	}

	aperture := d.float("IFD0/ExifIFD/FNumber")
	if aperture == 0 {
		aperture = d.float("IFD0/ExifIFD/ApertureValue")
	}
	if aperture > 0 {
		d.add("Aperture", math.Round(aperture*10)/10)
	}

	w := d.float("IFD0/ExifIFD/ExifImageWidth")
	h := d.float("IFD0/ExifIFD/ExifImageHeight")
	if w > 0 && h > 0 {
		d.add("Megapixels", math.Round(w*h/1e6*10)/10)
	}

	focal := d.float("IFD0/ExifIFD/FocalLength")
	focal35 := d.float("IFD0/ExifIFD/FocalLengthIn35mmFormat")
	if focal > 0 && focal35 > 0 {
		d.add("ScaleFactor35efl", math.Round(focal35/focal*10)/10)
	}

	// Light value: how much light the exposure was metered for, one stop
	// per unit, normalized to ISO 100.
	iso := d.float("IFD0/ExifIFD/ISO")
	if aperture > 0 && exposure > 0 && iso > 0 {
		lv := math.Log2(aperture*aperture/exposure) - math.Log2(iso/100)
		d.add("LightValue", math.Round(lv*10)/10)
	}
}

type deriver struct {
	meta *ParsedMetadata
}

func (d deriver) float(key string) float64 {
	ti, ok := d.meta.Tags[key]
	if !ok {
		return 0
	}
	f := toFloat64(ti.Value)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

func (d deriver) add(tag string, value any) {
	ti := TagInfo{Namespace: derivedNamespace, Tag: tag, Value: value}
	d.meta.Tags[ti.Key()] = ti
}

// formatExposure renders a shutter speed the conventional way: a reciprocal
// below one second, plain seconds at or above it.
func formatExposure(seconds float64) string {
	if seconds < 1 {
		return fmt.Sprintf("1/%d", int(math.Round(1/seconds)))
	}
	if seconds == math.Trunc(seconds) {
		return fmt.Sprintf("%d", int(seconds))
	}
	return fmt.Sprintf("%.1f", seconds)
}
