// Package anymaml provides the data model for
// Model-Agnostic Meta-Learning applied to reinforcement
// learning: task distributions, per-task episode batches,
// advantage estimation, and the fast-adaptation step
// shared by the multi-task sampler and the MAML-TRPO
// meta-learner.
//
// See https://arxiv.org/abs/1703.03400.
package anymaml
