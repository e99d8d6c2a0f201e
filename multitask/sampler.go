package multitask

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unixpickle/anymaml"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// A Future is a handle on an in-flight task sample.
type Future struct {
	// Task is the task being sampled.
	Task anymaml.Task

	once sync.Once
	done chan struct{}

	train *anymaml.Episodes
	valid *anymaml.Episodes
	err   error
}

// Wait blocks until the sample is finished and returns the
// train and valid batches, or an error if sampling failed.
func (f *Future) Wait() (train, valid *anymaml.Episodes, err error) {
	<-f.done
	return f.train, f.valid, f.err
}

func (f *Future) complete(train, valid *anymaml.Episodes, err error) {
	f.once.Do(func() {
		f.train = train
		f.valid = valid
		f.err = err
		close(f.done)
	})
}

// AdaptConfig determines how workers turn a train batch
// into adapted parameters before collecting the valid
// batch.
type AdaptConfig struct {
	// NumSteps is the number of inner gradient steps.
	// If 0, one step is taken.
	// Values other than 0 or 1 are rejected, since the
	// meta-learner differentiates through exactly one
	// step.
	NumSteps int

	// FastLR is the inner learning rate.
	FastLR float64

	// Discount and Lambda are the advantage estimation
	// parameters.
	Discount float64
	Lambda   float64
}

// A Sampler collects per-task train/valid episode pairs in
// parallel.
//
// Each worker owns its environment instances, so a task is
// sampled by exactly one worker at a time.
type Sampler struct {
	// MaxSteps, if non-zero, bounds the number of
	// timesteps per episode.
	MaxSteps int

	// Timeout, if non-zero, bounds the wall-clock time of
	// a single task sample.
	// Timed-out futures fail with an error; the worker
	// still finishes the rollout in the background.
	Timeout time.Duration

	dist     anymaml.TaskDist
	policy   anymaml.Policy
	space    anymaml.ActionSpace
	baseline anymaml.Baseline
	creator  anyvec.Creator

	jobs      chan *sampleJob
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSampler creates a Sampler with numWorkers parallel
// workers, each rolling out batchSize episodes per batch.
//
// The baseline is only read during sampling; fit it
// between sampling rounds.
func NewSampler(c anyvec.Creator, dist anymaml.TaskDist, policy anymaml.Policy,
	space anymaml.ActionSpace, baseline anymaml.Baseline, numWorkers,
	batchSize int) (sampler *Sampler, err error) {
	defer essentials.AddCtxTo("create sampler", &err)

	if numWorkers < 1 || batchSize < 1 {
		return nil, errors.New("worker and batch counts must be positive")
	}

	res := &Sampler{
		dist:     dist,
		policy:   policy,
		space:    space,
		baseline: baseline,
		creator:  c,
		jobs:     make(chan *sampleJob),
	}

	workers := make([]*worker, numWorkers)
	for i := range workers {
		envs := make([]anymaml.TaskEnv, batchSize)
		for j := range envs {
			envs[j], err = dist.NewEnv()
			if err != nil {
				return nil, err
			}
		}
		workers[i] = &worker{sampler: res, envs: envs}
	}

	for _, w := range workers {
		res.wg.Add(1)
		go func(w *worker) {
			defer res.wg.Done()
			w.run()
		}(w)
	}

	return res, nil
}

// SampleTasks draws n tasks from the task distribution.
func (s *Sampler) SampleTasks(n int) ([]anymaml.Task, error) {
	return s.dist.SampleTasks(n)
}

// SampleAsync starts collecting a train/valid pair for
// every task and returns immediately with one Future per
// task, in the same order.
//
// The parameter vector is shared by all workers and must
// not be modified until every future has resolved.
func (s *Sampler) SampleAsync(params anyvec.Vector, tasks []anymaml.Task,
	cfg *AdaptConfig) ([]*Future, error) {
	if cfg == nil {
		return nil, errors.New("sample tasks: nil adaptation config")
	}
	if cfg.NumSteps < 0 || cfg.NumSteps > 1 {
		return nil, fmt.Errorf("sample tasks: unsupported step count: %d",
			cfg.NumSteps)
	}

	futures := make([]*Future, len(tasks))
	jobs := make([]*sampleJob, len(tasks))
	for i, task := range tasks {
		futures[i] = &Future{Task: task, done: make(chan struct{})}
		jobs[i] = &sampleJob{
			task:   task,
			params: params,
			cfg:    cfg,
			future: futures[i],
		}
	}

	go func() {
		for _, job := range jobs {
			s.jobs <- job
		}
	}()

	if s.Timeout != 0 {
		for _, f := range futures {
			go func(f *Future) {
				timer := time.NewTimer(s.Timeout)
				defer timer.Stop()
				select {
				case <-f.done:
				case <-timer.C:
					f.complete(nil, nil, errors.New("sample task: timeout"))
				}
			}(f)
		}
	}

	return futures, nil
}

// Wait resolves a slice of futures into order-aligned
// train and valid batch slices.
//
// Failed tasks leave nil entries in both slices; the first
// failure is returned as the error, annotated with the
// task index.
func Wait(futures []*Future) (train, valid []*anymaml.Episodes, err error) {
	train = make([]*anymaml.Episodes, len(futures))
	valid = make([]*anymaml.Episodes, len(futures))
	for i, f := range futures {
		trainEps, validEps, ferr := f.Wait()
		if ferr != nil {
			if err == nil {
				err = essentials.AddCtx(fmt.Sprintf("task %d", i), ferr)
			}
			continue
		}
		train[i] = trainEps
		valid[i] = validEps
	}
	return
}

// Close shuts down the worker pool and waits for the
// workers to exit.
//
// Close must not be called while futures are unresolved.
func (s *Sampler) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}
