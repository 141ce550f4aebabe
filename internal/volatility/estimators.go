package volatility

import (
	"math"

	"volguard/internal/types"
)

// historicalVolatility returns the annualized standard deviation of log returns
func historicalVolatility(returns []float64, periodsPerYear float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(n)

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(n - 1)

	return math.Sqrt(variance * periodsPerYear)
}

// ewmaVolatility returns the annualized EWMA volatility with decay lambda:
// v_t = lambda*v_{t-1} + (1-lambda)*r_t^2, seeded with the first squared return.
func ewmaVolatility(returns []float64, lambda, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	variance := returns[0] * returns[0]
	for _, r := range returns[1:] {
		variance = lambda*variance + (1-lambda)*r*r
	}

	return math.Sqrt(variance * periodsPerYear)
}

// garchVolatility returns the annualized GARCH(1,1) volatility with fixed
// parameters: v_t = omega + alpha*r_{t-1}^2 + beta*v_{t-1}, seeded at the
// unconditional variance omega/(1-alpha-beta).
func garchVolatility(returns []float64, omega, alpha, beta, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	persistence := alpha + beta
	if persistence >= 1 {
		return 0
	}

	moved := false
	for _, r := range returns {
		if r != 0 {
			moved = true
			break
		}
	}
	if !moved {
		// A flat series carries no volatility signal; omega alone would
		// otherwise float the estimate above zero
		return 0
	}

	variance := omega / (1 - persistence)
	for _, r := range returns {
		variance = omega + alpha*r*r + beta*variance
	}
	if variance <= 0 {
		return 0
	}

	return math.Sqrt(variance * periodsPerYear)
}

// parkinsonVolatility returns the annualized Parkinson range estimator:
// sqrt( 1/(4 ln2 n) * sum(ln(H/L)^2) * periodsPerYear ).
func parkinsonVolatility(bars []types.PriceBar, periodsPerYear float64) float64 {
	n := len(bars)
	if n == 0 {
		return 0
	}

	sum := 0.0
	for _, bar := range bars {
		lr := bar.LogRange()
		sum += lr * lr
	}

	variance := sum / (4 * math.Ln2 * float64(n))
	return math.Sqrt(variance * periodsPerYear)
}

// garmanKlassVolatility returns the annualized Garman-Klass estimator:
// sqrt( 1/n * sum( 0.5*ln(H/L)^2 - (2 ln2 - 1)*ln(C/O)^2 ) * periodsPerYear ).
func garmanKlassVolatility(bars []types.PriceBar, periodsPerYear float64) float64 {
	n := len(bars)
	if n == 0 {
		return 0
	}

	sum := 0.0
	for _, bar := range bars {
		lr := bar.LogRange()
		lb := bar.LogBody()
		sum += 0.5*lr*lr - (2*math.Ln2-1)*lb*lb
	}

	variance := sum / float64(n)
	if variance <= 0 {
		// The open/close term can push a degenerate sample negative
		return 0
	}
	return math.Sqrt(variance * periodsPerYear)
}
