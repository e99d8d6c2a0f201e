package mamltrpo

import (
	"math"

	"github.com/unixpickle/anyvec"
)

// Residual norm below which the conjugate-gradient solve
// stops early.
const cgResidualTol = 1e-10

// conjGrad approximately solves op(x) = b for x, where op
// applies a symmetric positive-definite matrix.
// It returns the solution and the final residual norm.
//
// Algorithm taken from
// https://en.wikipedia.org/wiki/Conjugate_gradient_method#The_resulting_algorithm.
func conjGrad(op func(v anyvec.Vector) anyvec.Vector, b anyvec.Vector,
	iters int) (x anyvec.Vector, residual float64) {
	c := b.Creator()

	// x = 0
	x = c.MakeVector(b.Len())

	// r = b - Ax = b
	r := b.Copy()

	// p = r
	p := b.Copy()

	rMag := vecDot(r, r)

	for i := 0; i < iters && math.Sqrt(rMag) > cgResidualTol; i++ {
		// A*p
		ap := op(p)

		pAp := vecDot(p, ap)
		if pAp <= 0 {
			// Curvature breakdown; keep the progress made
			// so far.
			break
		}

		// (r dot r) / (p dot A*p)
		alpha := rMag / pAp

		// x = x + alpha*p
		xStep := p.Copy()
		xStep.Scale(c.MakeNumeric(alpha))
		x.Add(xStep)

		// r = r - alpha*A*p
		ap.Scale(c.MakeNumeric(alpha))
		r.Sub(ap)

		// (newR dot newR) / (r dot r)
		newRMag := vecDot(r, r)
		beta := newRMag / rMag
		rMag = newRMag

		// p = beta*p + r
		oldP := p
		p = r.Copy()
		oldP.Scale(c.MakeNumeric(beta))
		p.Add(oldP)
	}

	return x, math.Sqrt(rMag)
}

func vecDot(v1, v2 anyvec.Vector) float64 {
	return numToFloat(v1.Creator(), v1.Dot(v2))
}

func numToFloat(c anyvec.Creator, num anyvec.Numeric) float64 {
	vec := c.MakeVector(1)
	vec.AddScalar(num)
	return c.Float64Slice(vec.Data())[0]
}
