package translate

import "github.com/armrt/armrt/decode"

// There is no Thumb-specific lowering: DecodeThumb expands every 16-bit Thumb encoding
// into the equivalent ARM Kind/field shape at decode time (see
// decode/thumb.go's doc comment), so lower() never needs a Thumb-specific
// dispatch — the same lowerARM-style functions in lower_arm.go and
// exception.go handle both instruction streams. This file exists to name
// that design decision at the point a reader would otherwise look for a
// parallel "lower_thumb.go does the Thumb work" structure.
var _ = decode.ThumbLongBranchSuffix
