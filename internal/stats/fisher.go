package stats

import "math"

// Fisher's exact test enumerates all 2x2 tables with the margins b, h and n
// of the observed table. The joint count x of a table ranges over
// [max(0, b+h-n), min(b, h)] and has hypergeometric probability
//
//	P(x) = C(h, x) C(n-h, b-x) / C(n, b)
//
// The variants differ in which tables count as at least as extreme as the
// observed one.

// lchoose returns log C(n, k).
func lchoose(n, k float64) float64 {
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}

func hypergeom(x, b, h, n float64) float64 {
	return math.Exp(lchoose(h, x) + lchoose(n-h, b-x) - lchoose(n, b))
}

// fisher sums P(x) over the tables for which extreme(x) holds.
func fisher(b, h, n float64, extreme func(x float64) bool) float64 {
	if n <= 0 || b <= 0 || h <= 0 || b > n || h > n {
		return 1
	}
	lo := math.Max(0, b+h-n)
	hi := math.Min(b, h)
	sum := 0.0
	for x := lo; x <= hi; x++ {
		if extreme(x) {
			sum += hypergeom(x, b, h, n)
		}
	}
	return math.Min(sum, 1)
}

// tolerance absorbs rounding when comparing table statistics.
const tolerance = 1e-7

// fetprob counts tables no more probable than the observed one.
func fetprob(s, b, h, n float64) float64 {
	p := hypergeom(s, b, h, n) * (1 + tolerance)
	return fisher(b, h, n, func(x float64) bool { return hypergeom(x, b, h, n) <= p })
}

// fetchi2 counts tables with a chi^2 value at least the observed one.
func fetchi2(s, b, h, n float64) float64 {
	c := chi2(s, b, h, n) * (1 - tolerance)
	return fisher(b, h, n, func(x float64) bool { return chi2(x, b, h, n) >= c })
}

// fetinfo counts tables with a mutual information at least the observed one.
func fetinfo(s, b, h, n float64) float64 {
	i := info(s, b, h, n) * (1 - tolerance)
	return fisher(b, h, n, func(x float64) bool { return info(x, b, h, n) >= i })
}

// fetsupp counts tables with a joint support at least the observed one.
func fetsupp(s, b, h, n float64) float64 {
	return fisher(b, h, n, func(x float64) bool { return x >= s })
}
