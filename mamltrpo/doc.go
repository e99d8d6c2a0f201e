// Package mamltrpo implements the MAML-TRPO meta-learner:
// trust-region policy optimization through one-step task
// adaptations.
//
// See https://arxiv.org/abs/1703.03400 and
// https://arxiv.org/abs/1502.05477.
package mamltrpo
