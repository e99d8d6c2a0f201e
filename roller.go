package anymaml

import (
	"sync"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/lazyseq"
)

// TapeMaker is a function which generates a tape and a
// channel for writing to that tape.
//
// See lazyseq.ReferenceTape for an example.
type TapeMaker func(c anyvec.Creator) (tape lazyseq.Tape,
	writer chan<- *anyseq.Batch)

// A Roller runs a policy through environments and records
// the results as Episodes.
type Roller struct {
	Policy      Policy
	ActionSpace Sampler

	// Creator is used to convert observations to and
	// from the policy.
	Creator anyvec.Creator

	// MaxSteps, if non-zero, bounds the number of
	// timesteps per episode.
	MaxSteps int

	// These functions are called to produce tapes when
	// building an Episodes batch.
	//
	// You can set these in order to use special storage
	// techniques (e.g. compression or on-disk storage).
	//
	// For nil fields, lazyseq.ReferenceTape is used.
	MakeInputTape    TapeMaker
	MakeActionTape   TapeMaker
	MakeAgentOutTape TapeMaker
}

// Rollout produces one episode per environment, running
// the policy with the given parameter vector.
//
// The vector is retained by the resulting Episodes and
// must not be modified afterward.
func (r *Roller) Rollout(params anyvec.Vector, envs ...Env) (eps *Episodes,
	err error) {
	defer essentials.AddCtxTo("rollout policy", &err)

	inputs, inputCh := r.makeTape(r.MakeInputTape)
	actions, actionCh := r.makeTape(r.MakeActionTape)
	agentOuts, agentOutCh := r.makeTape(r.MakeAgentOutTape)

	defer func() {
		close(inputCh)
		close(actionCh)
		close(agentOutCh)
	}()

	rewards, err := r.rolloutChans(params, inputCh, actionCh, agentOutCh, envs)
	if err != nil {
		return nil, err
	}

	return &Episodes{
		Observations: inputs,
		Actions:      actions,
		AgentOuts:    agentOuts,
		Rewards:      rewards,
		Params:       params,
	}, nil
}

func (r *Roller) rolloutChans(params anyvec.Vector, inputCh, actionCh,
	agentOutCh chan<- *anyseq.Batch, envs []Env) (Rewards, error) {
	if len(envs) == 0 {
		return nil, nil
	}

	inBatch, err := resetAll(r.Creator, envs)
	if err != nil {
		return nil, err
	}
	rewards := make(Rewards, len(envs))
	paramRes := anydiff.NewConst(params)

	for t := 0; inBatch.NumPresent() > 0; t++ {
		if r.MaxSteps != 0 && t == r.MaxSteps {
			break
		}
		inputCh <- inBatch

		n := inBatch.NumPresent()
		out := r.Policy.Apply(paramRes, anydiff.NewConst(inBatch.Packed), n).Output()
		sampled := r.ActionSpace.Sample(out, n)
		actionBatch := &anyseq.Batch{Present: inBatch.Present, Packed: sampled}

		actionCh <- actionBatch
		agentOutCh <- &anyseq.Batch{Present: inBatch.Present, Packed: out}

		var stepRewards []float64
		inBatch, stepRewards, err = stepAll(actionBatch, envs)
		if err != nil {
			return nil, err
		}

		for i, pres := range actionBatch.Present {
			if pres {
				rewards[i] = append(rewards[i], stepRewards[0])
				stepRewards = stepRewards[1:]
			}
		}
	}

	return rewards, nil
}

func (r *Roller) makeTape(maker TapeMaker) (lazyseq.Tape, chan<- *anyseq.Batch) {
	if maker != nil {
		return maker(r.Creator)
	} else {
		return lazyseq.ReferenceTape(r.Creator)
	}
}

func resetAll(c anyvec.Creator, envs []Env) (*anyseq.Batch, error) {
	initBatch := &anyseq.Batch{
		Present: make([]bool, len(envs)),
	}

	var allObs []float64
	for i, e := range envs {
		obs, err := e.Reset()
		if err != nil {
			return nil, err
		}
		initBatch.Present[i] = true
		allObs = append(allObs, obs...)
	}

	initBatch.Packed = anyvec.Make(c, allObs)

	return initBatch, nil
}

func stepAll(actions *anyseq.Batch, envs []Env) (obs *anyseq.Batch,
	rewards []float64, err error) {
	c := actions.Packed.Creator()
	obs = &anyseq.Batch{
		Present: make([]bool, len(actions.Present)),
	}
	var splitActions [][]float64
	var presentEnvs []Env

	actionChunk := actions.Packed.Len() / actions.NumPresent()
	actionSlice := c.Float64Slice(actions.Packed.Data())
	var actionOffset int
	for i, pres := range actions.Present {
		if pres {
			action := actionSlice[actionOffset : actionOffset+actionChunk]
			actionOffset += actionChunk
			splitActions = append(splitActions, action)
			presentEnvs = append(presentEnvs, envs[i])
		}
	}

	obsVecs, rewards, dones, errs := batchStep(presentEnvs, splitActions)

	var presentIdx int
	var joinObs []float64
	for i, pres := range actions.Present {
		if !pres {
			continue
		}
		obsVec, done, err := obsVecs[presentIdx], dones[presentIdx], errs[presentIdx]
		presentIdx++
		if err != nil {
			return nil, nil, err
		}
		if !done {
			obs.Present[i] = true
			joinObs = append(joinObs, obsVec...)
		}
	}

	obs.Packed = anyvec.Make(c, joinObs)

	return
}

func batchStep(envs []Env, actions [][]float64) (obs [][]float64,
	rewards []float64, done []bool, err []error) {
	obs = make([][]float64, len(envs))
	rewards = make([]float64, len(envs))
	done = make([]bool, len(envs))
	err = make([]error, len(envs))
	var wg sync.WaitGroup
	for i, e := range envs {
		wg.Add(1)
		go func(i int, e Env) {
			defer wg.Done()
			obs[i], rewards[i], done[i], err[i] = e.Step(actions[i])
		}(i, e)
	}
	wg.Wait()
	return
}
