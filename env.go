package anymaml

// A Task identifies one member of a distribution of
// related environments.
//
// Tasks are opaque to this package.
// They are produced by a TaskDist and consumed by
// TaskEnv.SetTask.
type Task interface{}

// An Env is an instance of an RL environment.
type Env interface {
	Reset() (observation []float64, err error)
	Step(action []float64) (observation []float64, reward float64,
		done bool, err error)
}

// A TaskEnv is an Env whose dynamics and rewards depend
// on a task.
type TaskEnv interface {
	Env

	// SetTask switches the environment to a new task.
	// The environment must be Reset before it is used
	// again.
	SetTask(t Task) error
}

// A TaskDist is a distribution over related environments.
type TaskDist interface {
	// SampleTasks draws n tasks i.i.d. from the
	// distribution.
	SampleTasks(n int) ([]Task, error)

	// NewEnv creates a new environment instance.
	// The instance has no task until SetTask is called.
	NewEnv() (TaskEnv, error)
}
