package anymaml

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
)

// ReinforceObjective computes the inner ("fast")
// policy-gradient objective for an episode batch: the
// mean over timesteps of the action log-probability times
// the advantage.
//
// The result is built with the creator of params, which
// may differ from the creator of the recorded tapes (for
// example during forward auto-diff).
//
// The batch must contain at least one timestep, and its
// advantages must have been computed.
func ReinforceObjective(p Policy, space LogProber, eps *Episodes,
	params anydiff.Res) anydiff.Res {
	c := params.Output().Creator()
	obs := lazyseq.TapeRereader(convertTape(eps.Observations, c))
	actions := lazyseq.TapeRereader(convertTape(eps.Actions, c))
	advantages := lazyseq.TapeRereader(eps.Advantages.Tape(c))

	scores := lazyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
		outs := p.Apply(params, v[0], n)
		logProbs := space.LogProb(outs, v[1].Output(), n)
		return anydiff.Mul(logProbs, v[2])
	}, obs, actions, advantages)

	return lazyseq.Mean(scores)
}

// SurrogateObjective computes the importance-weighted
// surrogate objective for an episode batch: the mean over
// timesteps of the probability ratio between params and
// the collection-time distribution, times the advantage.
//
// The batch must contain at least one timestep, and its
// advantages must have been computed.
func SurrogateObjective(p Policy, space LogProber, eps *Episodes,
	params anydiff.Res) anydiff.Res {
	c := params.Output().Creator()
	obs := lazyseq.TapeRereader(convertTape(eps.Observations, c))
	actions := lazyseq.TapeRereader(convertTape(eps.Actions, c))
	oldOuts := lazyseq.TapeRereader(convertTape(eps.AgentOuts, c))
	advantages := lazyseq.TapeRereader(eps.Advantages.Tape(c))

	scores := lazyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
		newOuts := p.Apply(params, v[0], n)
		sampled := v[1].Output()
		ratios := anydiff.Exp(anydiff.Sub(
			space.LogProb(newOuts, sampled, n),
			space.LogProb(v[2], sampled, n),
		))
		return anydiff.Mul(ratios, v[3])
	}, obs, actions, oldOuts, advantages)

	return lazyseq.Mean(scores)
}

// MeanKL computes the mean KL divergence between the
// distributions recorded at collection time and the ones
// the policy produces under params.
//
// The batch must contain at least one timestep.
func MeanKL(p Policy, space KLer, eps *Episodes, params anydiff.Res) anydiff.Res {
	c := params.Output().Creator()
	obs := lazyseq.TapeRereader(convertTape(eps.Observations, c))
	oldOuts := lazyseq.TapeRereader(convertTape(eps.AgentOuts, c))

	divergences := lazyseq.MapN(func(n int, v ...anydiff.Res) anydiff.Res {
		newOuts := p.Apply(params, v[0], n)
		return space.KL(v[1], newOuts, n)
	}, obs, oldOuts)

	return lazyseq.Mean(divergences)
}

// Adapt computes a one-step adapted parameter vector by
// gradient ascent on ReinforceObjective with the given
// learning rate.
//
// The result is a plain value with no gradient history;
// the meta-learner separately recomputes the same step as
// part of its gradient computation.
//
// A batch with no timesteps yields an unchanged copy of
// the parameters.
func Adapt(p Policy, space LogProber, eps *Episodes, params anyvec.Vector,
	fastLR float64) anyvec.Vector {
	res := params.Copy()
	if eps.NumSteps() == 0 {
		return res
	}

	c := params.Creator()
	paramVar := anydiff.NewVar(params.Copy())
	objective := ReinforceObjective(p, space, eps, paramVar)

	grad := anydiff.NewGrad(paramVar)
	one := c.MakeVector(1)
	one.AddScalar(c.MakeNumeric(1))
	objective.Propagate(one, grad)

	step := grad[paramVar]
	step.Scale(c.MakeNumeric(fastLR))
	res.Add(step)
	return res
}
