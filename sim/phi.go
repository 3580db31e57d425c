// Empirical ETA-ratio correction. Phi approximates the ratio of the
// actual-best-match pickup time to the nearest-vehicle pickup time as a
// function of the queue sizes on one market side.

package sim

import "math"

// phi regression coefficients fitted over batch-matching experiments.
const (
	phiIntercept = 0.185472
	phiMinExp    = 0.199586
	phiMaxExp    = -0.122311
)

// ComputePhi evaluates the power-law regression for waiting count w and
// vacant count v. The ratio is floored at 1: a match can never beat the
// nearest vehicle.
func ComputePhi(w, v int) float64 {
	if w == 0 || v == 0 {
		return 1.0
	}
	lo := float64(min(w, v))
	hi := float64(max(w, v))
	phi := math.Exp(phiIntercept) * math.Pow(lo, phiMinExp) * math.Pow(hi, phiMaxExp)
	return math.Max(1.0, phi)
}
