package anymaml

import (
	"math"
	"math/rand"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// A Sampler samples from a parametric distribution.
//
// For an example, see Softmax.
type Sampler interface {
	// Sample samples a batch of vectors given a batch
	// of parameter vectors.
	Sample(params anyvec.Vector, batchSize int) anyvec.Vector
}

// A LogProber can compute the log-likelihood of a given
// output of a parametric distribution.
type LogProber interface {
	// LogProb produces, for each parameter-output pair
	// in the batch, a log-probability of the parameters
	// producing that output.
	//
	// For continuous distributions, this is the log of
	// the density rather than of the probability.
	LogProb(params anydiff.Res, output anyvec.Vector,
		batchSize int) anydiff.Res
}

// A KLer can compute KL divergences between pairs of
// parametric distributions.
type KLer interface {
	// KL computes the KL divergence between
	// corresponding distributions in two batches of
	// parameters, producing one value per batch entry.
	KL(params1, params2 anydiff.Res, batchSize int) anydiff.Res
}

// An ActionSpace is a parameterized action probability
// distribution.
//
// Implementations must build their results exclusively
// from operations of the parameter creator, so that they
// remain usable under forward auto-diff creators.
type ActionSpace interface {
	Sampler
	LogProber
	KLer
}

// Softmax is an ActionSpace which applies the softmax
// function to obtain a discrete distribution.
// It produces one-hot vector samples.
type Softmax struct{}

// Sample samples one-hot vectors from the softmax
// distribution.
func (s Softmax) Sample(params anyvec.Vector, batch int) anyvec.Vector {
	if params.Len()%batch != 0 {
		panic("batch size must divide parameter count")
	}
	chunk := params.Len() / batch
	probs := params.Copy()
	anyvec.LogSoftmax(probs, chunk)
	anyvec.Exp(probs)

	c := params.Creator()
	data := c.Float64Slice(probs.Data())
	oneHot := make([]float64, len(data))
	for i := 0; i < batch; i++ {
		p := data[i*chunk : (i+1)*chunk]
		idx := len(p) - 1
		randNum := rand.Float64()
		for j, x := range p {
			randNum -= x
			if randNum < 0 {
				idx = j
				break
			}
		}
		oneHot[i*chunk+idx] = 1
	}
	return c.MakeVectorData(c.MakeNumericList(oneHot))
}

// LogProb computes log-probabilities of one-hot samples.
func (s Softmax) LogProb(params anydiff.Res, output anyvec.Vector,
	batch int) anydiff.Res {
	if params.Output().Len() != output.Len() {
		panic("length mismatch")
	}
	if params.Output().Len()%batch != 0 {
		panic("batch size must divide parameter count")
	}
	chunk := params.Output().Len() / batch
	logs := anydiff.LogSoftmax(params, chunk)
	return batchedDot(logs, anydiff.NewConst(output), batch)
}

// KL computes the KL divergences between two batches of
// softmax distributions.
func (s Softmax) KL(params1, params2 anydiff.Res, batch int) anydiff.Res {
	if params1.Output().Len() != params2.Output().Len() {
		panic("length mismatch")
	}
	if params1.Output().Len()%batch != 0 {
		panic("batch size must divide parameter count")
	}
	chunk := params1.Output().Len() / batch
	log1 := anydiff.LogSoftmax(params1, chunk)
	log2 := anydiff.LogSoftmax(params2, chunk)
	return anydiff.Pool(log1, func(log1 anydiff.Res) anydiff.Res {
		probs := anydiff.Exp(log1)
		diff := anydiff.Sub(log1, log2)
		return batchedDot(probs, diff, batch)
	})
}

// Gaussian is an ActionSpace for diagonal Gaussian
// distributions.
//
// A batch of n d-dimensional distributions is
// parameterized by a vector of length 2*n*d: all of the
// means for the batch, followed by all of the log
// standard deviations.
// Sampled actions are laid out one entry after another,
// d components each.
type Gaussian struct{}

// Sample samples a batch of actions.
func (g Gaussian) Sample(params anyvec.Vector, batch int) anyvec.Vector {
	if params.Len()%2 != 0 {
		panic("parameter count must be even")
	}
	half := params.Len() / 2
	if half%batch != 0 {
		panic("batch size must divide parameter count")
	}
	c := params.Creator()
	data := c.Float64Slice(params.Data())
	means := data[:half]
	logStds := data[half:]
	out := make([]float64, half)
	for i := range out {
		out[i] = means[i] + math.Exp(logStds[i])*rand.NormFloat64()
	}
	return c.MakeVectorData(c.MakeNumericList(out))
}

// LogProb computes log-densities of sampled actions.
func (g Gaussian) LogProb(params anydiff.Res, output anyvec.Vector,
	batch int) anydiff.Res {
	if params.Output().Len() != 2*output.Len() {
		panic("length mismatch")
	}
	half := params.Output().Len() / 2
	if half%batch != 0 {
		panic("batch size must divide parameter count")
	}
	dim := half / batch
	c := params.Output().Creator()
	return anydiff.Pool(params, func(params anydiff.Res) anydiff.Res {
		mean := anydiff.Slice(params, 0, half)
		logStd := anydiff.Slice(params, half, 2*half)
		invStd := anydiff.Exp(anydiff.Scale(logStd, c.MakeNumeric(-1)))
		normed := anydiff.Mul(anydiff.Sub(anydiff.NewConst(output), mean), invStd)
		perComp := anydiff.Sub(
			anydiff.Scale(anydiff.Mul(normed, normed), c.MakeNumeric(-0.5)),
			logStd,
		)
		logNorm := -0.5 * float64(dim) * math.Log(2*math.Pi)
		return anydiff.AddScalar(batchedSum(perComp, batch),
			c.MakeNumeric(logNorm))
	})
}

// KL computes the KL divergences between two batches of
// diagonal Gaussians.
func (g Gaussian) KL(params1, params2 anydiff.Res, batch int) anydiff.Res {
	if params1.Output().Len() != params2.Output().Len() {
		panic("length mismatch")
	}
	if params1.Output().Len()%2 != 0 {
		panic("parameter count must be even")
	}
	half := params1.Output().Len() / 2
	if half%batch != 0 {
		panic("batch size must divide parameter count")
	}
	c := params1.Output().Creator()
	return anydiff.Pool(params1, func(params1 anydiff.Res) anydiff.Res {
		return anydiff.Pool(params2, func(params2 anydiff.Res) anydiff.Res {
			mean1 := anydiff.Slice(params1, 0, half)
			logStd1 := anydiff.Slice(params1, half, 2*half)
			mean2 := anydiff.Slice(params2, 0, half)
			logStd2 := anydiff.Slice(params2, half, 2*half)

			var1 := anydiff.Exp(anydiff.Scale(logStd1, c.MakeNumeric(2)))
			invVar2 := anydiff.Exp(anydiff.Scale(logStd2, c.MakeNumeric(-2)))
			meanDiff := anydiff.Sub(mean1, mean2)

			quad := anydiff.Scale(
				anydiff.Mul(anydiff.Add(var1, anydiff.Mul(meanDiff, meanDiff)), invVar2),
				c.MakeNumeric(0.5),
			)
			perComp := anydiff.AddScalar(
				anydiff.Add(anydiff.Sub(logStd2, logStd1), quad),
				c.MakeNumeric(-0.5),
			)
			return batchedSum(perComp, batch)
		})
	})
}

func batchedDot(vecs1, vecs2 anydiff.Res, batch int) anydiff.Res {
	return batchedSum(anydiff.Mul(vecs1, vecs2), batch)
}

func batchedSum(vecs anydiff.Res, batch int) anydiff.Res {
	return anydiff.SumCols(&anydiff.Matrix{
		Data: vecs,
		Rows: batch,
		Cols: vecs.Output().Len() / batch,
	})
}
