package anymaml

import (
	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/lazyseq"
)

// Rewards stores a scalar signal for every timestep of
// every episode in a batch.
type Rewards [][]float64

// Totals returns the sum for each episode.
func (r Rewards) Totals() []float64 {
	res := make([]float64, len(r))
	for i, seq := range r {
		for _, x := range seq {
			res[i] += x
		}
	}
	return res
}

// Mean returns the mean of the episode totals.
func (r Rewards) Mean() float64 {
	var sum float64
	for _, total := range r.Totals() {
		sum += total
	}
	return sum / float64(len(r))
}

// NumSteps counts the timesteps across all episodes.
func (r Rewards) NumSteps() int {
	var count int
	for _, seq := range r {
		count += len(seq)
	}
	return count
}

// Tape packs the values into a tape with one scalar per
// present episode per timestep.
func (r Rewards) Tape(c anyvec.Creator) lazyseq.Tape {
	tape, writer := lazyseq.ReferenceTape(c)
	for t := 0; true; t++ {
		present := make([]bool, len(r))
		var packed []float64
		for i, seq := range r {
			if t < len(seq) {
				present[i] = true
				packed = append(packed, seq[t])
			}
		}
		if len(packed) == 0 {
			break
		}
		writer <- &anyseq.Batch{
			Present: present,
			Packed:  anyvec.Make(c, packed),
		}
	}
	close(writer)
	return tape
}
