package anymaml

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
)

// A Policy computes action distribution parameters from a
// batch of observations, given an explicit flat parameter
// vector.
//
// The parameters are passed as an anydiff result so that
// adapted parameter vectors can themselves be part of a
// larger gradient computation.
// Implementations must build their outputs exclusively
// from operations of the parameter creator, so that the
// policy remains usable under forward auto-diff creators.
type Policy interface {
	// ParamLen returns the length of the flat parameter
	// vector.
	ParamLen() int

	// Apply applies the policy to a packed batch of
	// observations.
	Apply(params, obs anydiff.Res, batchSize int) anydiff.Res
}

// MLP is a feed-forward Policy with fully-connected
// layers.
type MLP struct {
	// InCount and OutCount are the observation size and
	// the action-parameter size.
	InCount  int
	OutCount int

	// Hidden contains the hidden layer sizes.
	Hidden []int

	// Activation is applied between layers.
	// If nil, anynet.Tanh is used.
	Activation anynet.Layer

	// LogStd, if true, appends OutCount state-independent
	// log standard deviations to each output batch,
	// producing the layout expected by Gaussian.
	LogStd bool
}

// ParamLen returns the total number of weights, biases,
// and (if LogStd is set) log-std entries.
func (m *MLP) ParamLen() int {
	var total int
	for _, size := range m.layerSizes() {
		total += size[0]*size[1] + size[1]
	}
	if m.LogStd {
		total += m.OutCount
	}
	return total
}

// InitParams creates a randomly-initialized parameter
// vector.
// Weights are normally distributed and scaled by the
// inverse square root of the fan-in; biases and log-stds
// start at zero.
func (m *MLP) InitParams(c anyvec.Creator) anyvec.Vector {
	var chunks []anyvec.Vector
	for _, size := range m.layerSizes() {
		weights := c.MakeVector(size[0] * size[1])
		anyvec.Rand(weights, anyvec.Normal, nil)
		weights.Scale(c.MakeNumeric(1 / math.Sqrt(float64(size[0]))))
		chunks = append(chunks, weights, c.MakeVector(size[1]))
	}
	if m.LogStd {
		chunks = append(chunks, c.MakeVector(m.OutCount))
	}
	return c.Concat(chunks...)
}

// Apply applies the network to a batch of observations.
func (m *MLP) Apply(params, obs anydiff.Res, batch int) anydiff.Res {
	if params.Output().Len() != m.ParamLen() {
		panic("parameter length mismatch")
	}
	if obs.Output().Len() != batch*m.InCount {
		panic("observation length mismatch")
	}
	c := params.Output().Creator()
	sizes := m.layerSizes()
	return anydiff.Pool(params, func(params anydiff.Res) anydiff.Res {
		cur := obs
		var offset int
		for i, size := range sizes {
			weights := anydiff.Slice(params, offset, offset+size[0]*size[1])
			offset += size[0] * size[1]
			biases := anydiff.Slice(params, offset, offset+size[1])
			offset += size[1]
			product := anydiff.MatMul(false, false,
				&anydiff.Matrix{Data: cur, Rows: batch, Cols: size[0]},
				&anydiff.Matrix{Data: weights, Rows: size[0], Cols: size[1]})
			cur = anydiff.AddRepeated(product.Data, biases)
			if i+1 < len(sizes) {
				cur = m.activation().Apply(cur, batch)
			}
		}
		if m.LogStd {
			logStd := anydiff.Slice(params, offset, offset+m.OutCount)
			repeated := anydiff.AddRepeated(
				anydiff.NewConst(c.MakeVector(batch*m.OutCount)),
				logStd,
			)
			cur = anydiff.Concat(cur, repeated)
		}
		return cur
	})
}

func (m *MLP) activation() anynet.Layer {
	if m.Activation != nil {
		return m.Activation
	} else {
		return anynet.Tanh
	}
}

func (m *MLP) layerSizes() [][2]int {
	widths := make([]int, 0, len(m.Hidden)+2)
	widths = append(widths, m.InCount)
	widths = append(widths, m.Hidden...)
	widths = append(widths, m.OutCount)
	res := make([][2]int, 0, len(widths)-1)
	for i := 0; i+1 < len(widths); i++ {
		res = append(res, [2]int{widths[i], widths[i+1]})
	}
	return res
}
