package rating

import "math"

// slope gives the tanh curve unit variance.
var slope = math.Pi / (2 * math.Sqrt(3))

// CDF is the win-probability curve: a tanh approximation of the normal CDF.
func CDF(x, loc, scale float64) float64 {
	return 0.5 + 0.5*math.Tanh(slope*(x-loc)/scale)
}

// PDF is the derivative of CDF with respect to x.
func PDF(x, loc, scale float64) float64 {
	t := math.Tanh(slope * (x - loc) / scale)
	return slope / (2 * scale) * (1 - t*t)
}

// InverseCDF returns the x for which CDF(x, loc, scale) == p. p must lie in (0, 1).
func InverseCDF(p, loc, scale float64) float64 {
	return loc + scale*math.Atanh(2*p-1)/slope
}

// logCDF and logSurvival compute log(CDF) and log(1-CDF) without underflow.
func logCDF(x, loc, scale float64) float64 {
	return -softplus(-2 * slope * (x - loc) / scale)
}

func logSurvival(x, loc, scale float64) float64 {
	return -softplus(2 * slope * (x - loc) / scale)
}

func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}
