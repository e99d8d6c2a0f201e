package anymaml

// A Baseline estimates state values for advantage
// computation.
type Baseline interface {
	// Fit fits the baseline to one or more episode
	// batches.
	//
	// Fit must not be called while sampling is in
	// progress.
	Fit(batches ...*Episodes) error

	// Predict returns a value estimate for every timestep
	// of every episode in the batch.
	//
	// Predict may be called concurrently from multiple
	// goroutines.
	Predict(eps *Episodes) [][]float64
}

// GAE computes generalized advantage estimates from
// rewards and per-timestep value predictions.
//
// Episodes are treated as ending at their final recorded
// timestep; no value is bootstrapped past the end.
//
// See https://arxiv.org/abs/1506.02438.
func GAE(rewards Rewards, values [][]float64, discount, lam float64) Rewards {
	res := make(Rewards, len(rewards))
	for i, rewSeq := range rewards {
		valSeq := values[i]
		advantages := make([]float64, len(rewSeq))
		var accumulation float64
		for t := len(rewSeq) - 1; t >= 0; t-- {
			delta := rewSeq[t] - valSeq[t]
			if t+1 < len(rewSeq) {
				delta += discount * valSeq[t+1]
			}
			accumulation *= discount * lam
			accumulation += delta
			advantages[t] = accumulation
		}
		res[i] = advantages
	}
	return res
}

// ComputeAdvantages fills in eps.Advantages using value
// predictions from a baseline.
func ComputeAdvantages(eps *Episodes, b Baseline, discount, lam float64) {
	eps.Advantages = GAE(eps.Rewards, b.Predict(eps), discount, lam)
}
