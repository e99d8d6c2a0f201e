package mamltrpo

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyfwd"
	"github.com/unixpickle/anyvec"
)

// gradient computes the gradient of a scalar objective
// with respect to a parameter vector.
func gradient(f func(params anydiff.Res) anydiff.Res,
	params anyvec.Vector) anyvec.Vector {
	c := params.Creator()
	paramVar := anydiff.NewVar(params.Copy())
	out := f(paramVar)

	grad := anydiff.NewGrad(paramVar)
	one := c.MakeVector(1)
	one.AddScalar(c.MakeNumeric(1))
	out.Propagate(one, grad)

	return grad[paramVar]
}

// hvp computes the product of the Hessian of a scalar
// objective at params with the vector v.
//
// The objective is rebuilt under a forward auto-diff
// creator whose parameter derivative is v; the derivative
// of the reverse-mode gradient is then the
// Hessian-vector product.
func hvp(f func(params anydiff.Res) anydiff.Res, params,
	v anyvec.Vector) anyvec.Vector {
	c := &anyfwd.Creator{
		ValueCreator: params.Creator(),
		GradSize:     1,
	}

	fwdParams := c.MakeVector(params.Len()).(*anyfwd.Vector)
	fwdParams.Values.Set(params)
	fwdParams.Jacobian[0].Set(v)
	paramVar := anydiff.NewVar(fwdParams)

	out := f(paramVar)

	grad := anydiff.NewGrad(paramVar)
	one := c.MakeVector(1)
	one.AddScalar(c.MakeNumeric(1))
	out.Propagate(one, grad)

	return grad[paramVar].(*anyfwd.Vector).Jacobian[0]
}
