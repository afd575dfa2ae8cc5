package utils

import (
	"math"
	"math/big"
)

// maxDenominator caps the denominators produced by BestRational. EXIF GPS
// rationals are stored as 32-bit pairs, so float noise has to collapse to a
// small clean fraction.
const maxDenominator = 1_000_000

// Rational is a reduced fraction Num/Den with Den > 0.
type Rational struct {
	Num int64
	Den int64
}

// Float64 recombines the fraction into a float.
func (r Rational) Float64() float64 {
	return float64(r.Num) / float64(r.Den)
}

// DMS is the degree-minute-second magnitude encoding of a coordinate,
// each part a reduced rational as the EXIF GPS tags expect.
type DMS struct {
	Degrees Rational
	Minutes Rational
	Seconds Rational
}

// Decimal recombines the triple back into decimal degrees (always positive;
// the hemisphere ref carries the sign).
func (d DMS) Decimal() float64 {
	return d.Degrees.Float64() + d.Minutes.Float64()/60 + d.Seconds.Float64()/3600
}

// DegreesToDMS splits |deg| into integer degrees, integer minutes and
// seconds rounded to two decimal places, each converted to a reduced
// small-denominator rational. Total over any finite float; out-of-range
// magnitudes are encoded arithmetically, validation is the caller's problem.
func DegreesToDMS(deg float64) DMS {
	abs := math.Abs(deg)

	d := math.Floor(abs)
	minutesFloat := (abs - d) * 60
	m := math.Floor(minutesFloat)
	s := math.Round((minutesFloat-m)*60*100) / 100

	return DMS{
		Degrees: BestRational(d),
		Minutes: BestRational(m),
		Seconds: BestRational(s),
	}
}

// LatitudeRef returns the hemisphere reference for a latitude sign.
func LatitudeRef(deg float64) string {
	if deg >= 0 {
		return "N"
	}
	return "S"
}

// LongitudeRef returns the hemisphere reference for a longitude sign.
func LongitudeRef(deg float64) string {
	if deg >= 0 {
		return "E"
	}
	return "W"
}

// BestRational returns the closest fraction to x whose denominator does not
// exceed maxDenominator, using the continued-fraction expansion of the exact
// binary value of x. This is the classic best-rational-approximation
// algorithm: walk the convergents p/q of x until the denominator cap is hit,
// then compare the last convergent against the best semiconvergent.
func BestRational(x float64) Rational {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Rational{0, 1}
	}

	neg := math.Signbit(x)
	exact := new(big.Rat).SetFloat64(math.Abs(x))
	if exact == nil {
		return Rational{0, 1}
	}

	n := new(big.Int).Set(exact.Num())
	d := new(big.Int).Set(exact.Denom())
	limit := big.NewInt(maxDenominator)

	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)

	truncated := false
	for d.Sign() != 0 {
		a, r := new(big.Int).QuoRem(n, d, new(big.Int))

		q2 := new(big.Int).Add(q0, new(big.Int).Mul(a, q1))
		if q2.Cmp(limit) > 0 {
			truncated = true
			break
		}

		p2 := new(big.Int).Add(p0, new(big.Int).Mul(a, p1))
		p0, q0, p1, q1 = p1, q1, p2, q2
		n, d = d, r
	}

	num, den := p1, q1
	if truncated {
		// Best semiconvergent under the cap vs. last full convergent.
		k := new(big.Int).Quo(new(big.Int).Sub(limit, q0), q1)
		sp := new(big.Int).Add(p0, new(big.Int).Mul(k, p1))
		sq := new(big.Int).Add(q0, new(big.Int).Mul(k, q1))

		semi := new(big.Rat).SetFrac(sp, sq)
		conv := new(big.Rat).SetFrac(p1, q1)

		dSemi := new(big.Rat).Sub(semi, exact)
		dConv := new(big.Rat).Sub(conv, exact)
		if dSemi.Abs(dSemi).Cmp(dConv.Abs(dConv)) < 0 {
			num, den = sp, sq
		}
	}

	r := Rational{Num: num.Int64(), Den: den.Int64()}
	if r.Den == 0 {
		r = Rational{0, 1}
	}
	if neg {
		r.Num = -r.Num
	}
	return r
}
