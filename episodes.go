package anymaml

import (
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
)

// Episodes is a batch of recorded episodes, all collected
// on a single task with a single parameter vector.
type Episodes struct {
	// Task is the task the batch was collected on.
	// It may be nil when the environments are not
	// task-driven.
	Task Task

	// Observations, Actions and AgentOuts record the
	// policy inputs, the sampled actions, and the raw
	// action-distribution parameters at each timestep.
	Observations lazyseq.Tape
	Actions      lazyseq.Tape
	AgentOuts    lazyseq.Tape

	// Rewards contains the immediate reward at each
	// timestep.
	Rewards Rewards

	// Advantages contains a per-timestep advantage
	// estimate.
	// It is nil until advantages have been computed.
	Advantages Rewards

	// Params is the parameter vector the policy used
	// while the batch was collected.
	// It must not be modified after collection.
	Params anyvec.Vector
}

// Creator returns the creator of the recorded tapes.
func (e *Episodes) Creator() anyvec.Creator {
	return e.Observations.Creator()
}

// NumEpisodes returns the number of episodes in the
// batch.
func (e *Episodes) NumEpisodes() int {
	return len(e.Rewards)
}

// NumSteps counts the timesteps across all episodes.
func (e *Episodes) NumSteps() int {
	return e.Rewards.NumSteps()
}

// MeanReturn returns the mean total reward per episode.
func (e *Episodes) MeanReturn() float64 {
	return e.Rewards.Mean()
}

// SplitObservations unpacks the observation tape into one
// slice of observation vectors per episode.
func (e *Episodes) SplitObservations() [][][]float64 {
	res := make([][][]float64, e.NumEpisodes())
	c := e.Creator()
	for batch := range e.Observations.ReadTape(0, -1) {
		comps := c.Float64Slice(batch.Packed.Data())
		size := len(comps) / batch.NumPresent()
		for i, pres := range batch.Present {
			if !pres {
				continue
			}
			res[i] = append(res[i], comps[:size])
			comps = comps[size:]
		}
	}
	return res
}
