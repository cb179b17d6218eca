package processor

import (
	"math"
)

// Exploration searches the encoder parameter space for the lowest
// parameter (best quality) whose output still undercuts the source
// size and clears the quality floor. The candidate encode is a real
// encode; explore runs cost one encode per probe.

const exploreStep = 0.5

// ssimFloor is the lowest acceptable structural similarity for an
// explored candidate.
const ssimFloor = 0.95

// Interval is a closed search range over an encoder parameter where
// higher values compress harder.
type Interval struct {
	Lo, Hi float64
}

func (iv Interval) Width() float64 {
	return iv.Hi - iv.Lo
}

// Mid returns the interval midpoint rounded to the encoder's 0.5
// parameter granularity.
func (iv Interval) Mid() float64 {
	return roundHalf((iv.Lo + iv.Hi) / 2)
}

// maxProbes bounds the search at ceil(log2(width)) iterations, the
// point where the interval is narrower than one parameter unit.
func maxProbes(iv Interval) int {
	w := iv.Width()
	if w <= exploreStep {
		return 1
	}
	return int(math.Ceil(math.Log2(w)))
}

// probeFunc encodes one candidate at the given parameter and reports
// its output size and similarity score against the source.
type probeFunc func(param float64) (size int64, ssim float64, err error)

// exploreResult carries the best candidate found, if any.
type exploreResult struct {
	Found  bool
	Param  float64
	Size   int64
	SSIM   float64
	Probes int
}

// exploreParam binary-searches the interval. Each probe narrows the
// range: oversized candidates push the lower bound up (harder
// compression), candidates below the quality floor or viable ones
// pull the upper bound down (better quality).
func exploreParam(iv Interval, srcSize int64, floor float64, probe probeFunc) (exploreResult, error) {
	var result exploreResult
	limit := maxProbes(iv)

	for iv.Lo <= iv.Hi && result.Probes < limit {
		mid := iv.Mid()
		size, ssim, err := probe(mid)
		if err != nil {
			return result, err
		}
		result.Probes++

		switch {
		case size >= srcSize:
			iv.Lo = mid + exploreStep
		case ssim < floor:
			iv.Hi = mid - exploreStep
		default:
			result.Found = true
			result.Param = mid
			result.Size = size
			result.SSIM = ssim
			iv.Hi = mid - exploreStep
		}
	}
	return result, nil
}
