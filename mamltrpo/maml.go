package mamltrpo

import (
	"errors"
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anymaml"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Default settings for MAMLTRPO.Step.
const (
	DefaultMaxKL           = 0.01
	DefaultCGIters         = 10
	DefaultCGDamping       = 1e-2
	DefaultLineSearchMax   = 10
	DefaultLineSearchDecay = 0.6
)

// StepConfig holds the hyperparameters for a single
// meta-update.
// Zero-valued fields fall back to the package defaults.
type StepConfig struct {
	// MaxKL bounds the mean KL divergence between the
	// adapted policies before and after the update.
	MaxKL float64

	// CGIters is the maximum number of conjugate-gradient
	// iterations.
	CGIters int

	// CGDamping is added (times the identity) to the
	// curvature-vector product for numerical stability.
	CGDamping float64

	// LineSearchMax and LineSearchDecay control the
	// backtracking line search: up to LineSearchMax trial
	// scales, each LineSearchDecay times the previous.
	LineSearchMax   int
	LineSearchDecay float64
}

// StepResult reports diagnostics for one meta-update.
type StepResult struct {
	// Before and After are the surrogate meta-objective
	// values before and after the update.
	// They are equal when the update was rejected.
	Before float64
	After  float64

	// KL is the realized mean KL divergence of the
	// applied update, or 0 if the update was rejected.
	KL float64

	// StepSize is the accepted scale of the natural
	// gradient direction, or 0 if the update was
	// rejected.
	StepSize float64

	// LineSearchSteps is the number of trial scales that
	// were evaluated.
	LineSearchSteps int

	// CGResidual is the final residual norm of the
	// conjugate-gradient solve.
	CGResidual float64

	// Accepted reports whether the update was applied.
	Accepted bool

	// TasksSkipped counts the tasks excluded from the
	// update because they contributed no timesteps.
	TasksSkipped int
}

// MAMLTRPO meta-trains a policy so that a single gradient
// step on a new task's train batch yields good behavior
// on that task.
//
// It owns the canonical parameter vector; samplers should
// be given copies of it.
type MAMLTRPO struct {
	Policy      anymaml.Policy
	ActionSpace anymaml.ActionSpace

	// Params is the parameter vector updated in place by
	// Step.
	Params anyvec.Vector

	// FastLR is the inner adaptation learning rate.
	// It must match the rate the sampler used to collect
	// the valid batches.
	FastLR float64

	// FirstOrder drops the second-order terms of the
	// meta-gradient and of the KL curvature (first-order
	// MAML).
	FirstOrder bool
}

// taskData is the per-task state of one meta-update.
type taskData struct {
	Train   *anymaml.Episodes
	Valid   *anymaml.Episodes
	Adapted anyvec.Vector
}

// Step performs one meta-update on a batch of per-task
// train/valid episode pairs.
//
// Train and valid batches must be index-aligned by task.
// Tasks with nil or empty batches are excluded from the
// update and counted in the result's TasksSkipped.
//
// If no trial step satisfies both the improvement and the
// KL conditions, the update is rejected and Params is left
// exactly unchanged; this is reported through the result,
// not as an error.
func (m *MAMLTRPO) Step(train, valid []*anymaml.Episodes,
	cfg *StepConfig) (res *StepResult, err error) {
	defer essentials.AddCtxTo("MAML-TRPO step", &err)

	if cfg == nil {
		cfg = &StepConfig{}
	}
	if len(train) != len(valid) {
		return nil, errors.New("train/valid task count mismatch")
	}

	var tasks []*taskData
	var skipped int
	for i := range train {
		if train[i] == nil || valid[i] == nil ||
			train[i].NumSteps() == 0 || valid[i].NumSteps() == 0 {
			skipped++
			continue
		}
		tasks = append(tasks, &taskData{Train: train[i], Valid: valid[i]})
	}
	if len(tasks) == 0 {
		return nil, errors.New("no tasks with timesteps")
	}

	c := m.Params.Creator()
	for _, task := range tasks {
		task.Adapted = anymaml.Adapt(m.Policy, m.ActionSpace, task.Train,
			m.Params, m.FastLR)
	}

	var before float64
	for _, task := range tasks {
		obj := anymaml.SurrogateObjective(m.Policy, m.ActionSpace, task.Valid,
			anydiff.NewConst(task.Adapted))
		before += resToFloat(obj)
	}
	before /= float64(len(tasks))

	grad := m.metaGrad(tasks)
	fisher := func(v anyvec.Vector) anyvec.Vector {
		return m.applyFisher(tasks, v, cfg.cgDamping())
	}
	direction, residual := conjGrad(fisher, grad, cfg.cgIters())

	res = &StepResult{
		Before:       before,
		After:        before,
		CGResidual:   residual,
		TasksSkipped: skipped,
	}

	// Largest scale satisfying the quadratic expansion of
	// the trust region: 0.5 * scale^2 * x'Hx = maxKL.
	quad := vecDot(direction, fisher(direction))
	if quad <= 0 {
		// Rounding errors can make the product
		// non-positive; there is no usable step.
		return res, nil
	}
	scale := math.Sqrt(2 * cfg.maxKL() / quad)

	for i := 0; i < cfg.lineSearchMax(); i++ {
		res.LineSearchSteps = i + 1

		candidate := m.Params.Copy()
		step := direction.Copy()
		step.Scale(c.MakeNumeric(scale))
		candidate.Add(step)

		objective, kl := m.evaluate(tasks, candidate)
		if objective > before && kl <= cfg.maxKL() {
			m.Params.Set(candidate)
			res.After = objective
			res.KL = kl
			res.StepSize = scale
			res.Accepted = true
			return res, nil
		}
		scale *= cfg.lineSearchDecay()
	}

	return res, nil
}

// metaGrad computes the gradient of the surrogate
// meta-objective with respect to the base parameters,
// averaged over tasks.
//
// With adapted = params + lr*grad(train), the chain rule
// gives (I + lr*H_train) * grad_adapted(valid); the
// Hessian term is dropped in first-order mode.
func (m *MAMLTRPO) metaGrad(tasks []*taskData) anyvec.Vector {
	c := m.Params.Creator()
	total := c.MakeVector(m.Params.Len())
	for _, task := range tasks {
		validGrad := gradient(func(params anydiff.Res) anydiff.Res {
			return anymaml.SurrogateObjective(m.Policy, m.ActionSpace,
				task.Valid, params)
		}, task.Adapted)

		if !m.FirstOrder {
			correction := hvp(m.trainObjective(task), m.Params, validGrad)
			correction.Scale(c.MakeNumeric(m.FastLR))
			validGrad.Add(correction)
		}
		total.Add(validGrad)
	}
	total.Scale(c.MakeNumeric(1 / float64(len(tasks))))
	return total
}

// applyFisher computes the product of the damped KL
// curvature matrix with v, averaged over tasks.
//
// The KL divergence is measured at the adapted
// parameters, so the probe vector is carried through the
// adaptation Jacobian (I + lr*H_train) on both sides.
// The first-derivative KL term vanishes because the old
// and new distributions coincide at the expansion point.
func (m *MAMLTRPO) applyFisher(tasks []*taskData, v anyvec.Vector,
	damping float64) anyvec.Vector {
	c := m.Params.Creator()
	total := c.MakeVector(v.Len())
	for _, task := range tasks {
		task := task
		klObjective := func(params anydiff.Res) anydiff.Res {
			return anymaml.MeanKL(m.Policy, m.ActionSpace, task.Valid, params)
		}

		probe := v
		if !m.FirstOrder {
			correction := hvp(m.trainObjective(task), m.Params, v)
			correction.Scale(c.MakeNumeric(m.FastLR))
			probe = v.Copy()
			probe.Add(correction)
		}

		product := hvp(klObjective, task.Adapted, probe)

		if !m.FirstOrder {
			correction := hvp(m.trainObjective(task), m.Params, product)
			correction.Scale(c.MakeNumeric(m.FastLR))
			product.Add(correction)
		}
		total.Add(product)
	}
	total.Scale(c.MakeNumeric(1 / float64(len(tasks))))

	damped := v.Copy()
	damped.Scale(c.MakeNumeric(damping))
	total.Add(damped)
	return total
}

// evaluate recomputes the adaptation from candidate base
// parameters and returns the mean surrogate objective and
// mean KL divergence across tasks.
func (m *MAMLTRPO) evaluate(tasks []*taskData,
	params anyvec.Vector) (objective, kl float64) {
	for _, task := range tasks {
		adapted := anydiff.NewConst(anymaml.Adapt(m.Policy, m.ActionSpace,
			task.Train, params, m.FastLR))
		obj := anymaml.SurrogateObjective(m.Policy, m.ActionSpace,
			task.Valid, adapted)
		div := anymaml.MeanKL(m.Policy, m.ActionSpace, task.Valid, adapted)
		objective += resToFloat(obj)
		kl += resToFloat(div)
	}
	count := float64(len(tasks))
	return objective / count, kl / count
}

func (m *MAMLTRPO) trainObjective(task *taskData) func(anydiff.Res) anydiff.Res {
	return func(params anydiff.Res) anydiff.Res {
		return anymaml.ReinforceObjective(m.Policy, m.ActionSpace, task.Train,
			params)
	}
}

func resToFloat(res anydiff.Res) float64 {
	out := res.Output()
	return out.Creator().Float64Slice(out.Data())[0]
}

func (s *StepConfig) maxKL() float64 {
	if s.MaxKL == 0 {
		return DefaultMaxKL
	} else {
		return s.MaxKL
	}
}

func (s *StepConfig) cgIters() int {
	if s.CGIters == 0 {
		return DefaultCGIters
	} else {
		return s.CGIters
	}
}

func (s *StepConfig) cgDamping() float64 {
	if s.CGDamping == 0 {
		return DefaultCGDamping
	} else {
		return s.CGDamping
	}
}

func (s *StepConfig) lineSearchMax() int {
	if s.LineSearchMax == 0 {
		return DefaultLineSearchMax
	} else {
		return s.LineSearchMax
	}
}

func (s *StepConfig) lineSearchDecay() float64 {
	if s.LineSearchDecay == 0 {
		return DefaultLineSearchDecay
	} else {
		return s.LineSearchDecay
	}
}
