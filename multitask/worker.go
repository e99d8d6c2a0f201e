package multitask

import (
	"fmt"

	"github.com/unixpickle/anymaml"
	"github.com/unixpickle/anyvec"
)

type sampleJob struct {
	task   anymaml.Task
	params anyvec.Vector
	cfg    *AdaptConfig
	future *Future
}

// A worker owns a set of environment instances and samples
// one task at a time on them.
type worker struct {
	sampler *Sampler
	envs    []anymaml.TaskEnv
}

func (w *worker) run() {
	for job := range w.sampler.jobs {
		train, valid, err := w.collect(job)
		job.future.complete(train, valid, err)
	}
}

// collect samples the train batch, adapts the parameters,
// and samples the valid batch for one task.
func (w *worker) collect(job *sampleJob) (train, valid *anymaml.Episodes,
	err error) {
	defer func() {
		if r := recover(); r != nil {
			train, valid = nil, nil
			err = fmt.Errorf("sample task: panic: %v", r)
		}
	}()

	for _, env := range w.envs {
		if err := env.SetTask(job.task); err != nil {
			return nil, nil, err
		}
	}

	roller := &anymaml.Roller{
		Policy:      w.sampler.policy,
		ActionSpace: w.sampler.space,
		Creator:     w.sampler.creator,
		MaxSteps:    w.sampler.MaxSteps,
	}
	envs := make([]anymaml.Env, len(w.envs))
	for i, env := range w.envs {
		envs[i] = env
	}

	train, err = roller.Rollout(job.params, envs...)
	if err != nil {
		return nil, nil, err
	}
	train.Task = job.task
	anymaml.ComputeAdvantages(train, w.sampler.baseline, job.cfg.Discount,
		job.cfg.Lambda)

	adapted := anymaml.Adapt(w.sampler.policy, w.sampler.space, train,
		job.params, job.cfg.FastLR)

	valid, err = roller.Rollout(adapted, envs...)
	if err != nil {
		return nil, nil, err
	}
	valid.Task = job.task
	anymaml.ComputeAdvantages(valid, w.sampler.baseline, job.cfg.Discount,
		job.cfg.Lambda)

	return train, valid, nil
}
