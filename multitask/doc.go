// Package multitask collects MAML episode batches from a
// distribution of tasks using a pool of rollout workers.
package multitask
