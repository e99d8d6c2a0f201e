package anymaml

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff/anyseq"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/lazyseq"
)

func TestGAE(t *testing.T) {
	rewards := Rewards{{1, 2}, {1, 1, 1}}
	values := [][]float64{{0.5, 1}, {0, 0, 0}}

	actual := GAE(rewards, values, 0.9, 0.8)
	expected := Rewards{
		{1.4 + 0.9*0.8*1, 1},
		{1 + 0.9*0.8*(1+0.9*0.8), 1 + 0.9*0.8, 1},
	}
	for i, seq := range expected {
		for j, x := range seq {
			if math.Abs(actual[i][j]-x) > 1e-8 {
				t.Errorf("entry %d,%d: expected %f but got %f", i, j, x,
					actual[i][j])
			}
		}
	}
}

func TestComputeAdvantagesUnfitted(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	eps := packEpisodes(c,
		[][][]float64{{{0.1}, {0.2}}, {{0.3}}},
		Rewards{{1, 2}, {3}})

	// An unfitted baseline predicts zero, so advantages
	// reduce to discounted reward sums.
	ComputeAdvantages(eps, &LinearBaseline{}, 0.5, 1)
	expected := Rewards{{2, 2}, {3}}
	for i, seq := range expected {
		for j, x := range seq {
			if math.Abs(eps.Advantages[i][j]-x) > 1e-8 {
				t.Errorf("entry %d,%d: expected %f but got %f", i, j, x,
					eps.Advantages[i][j])
			}
		}
	}
}

func TestLinearBaselineFit(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	obs := [][][]float64{
		{{0.1}, {0.2}, {0.3}, {0.4}},
		{{0.5}, {0.6}, {0.7}},
	}
	rewards := Rewards{
		{1, 1, 1, 1},
		{1, 1, 1},
	}
	eps := packEpisodes(c, obs, rewards)

	baseline := &LinearBaseline{}
	if err := baseline.Fit(eps); err != nil {
		t.Fatal(err)
	}

	// Undiscounted returns are linear in the timestep, so
	// the fit should be nearly exact.
	predictions := baseline.Predict(eps)
	for i, rewSeq := range rewards {
		length := len(rewSeq)
		for j := range rewSeq {
			expected := float64(length - j)
			if math.Abs(predictions[i][j]-expected) > 0.05 {
				t.Errorf("entry %d,%d: expected %f but got %f", i, j,
					expected, predictions[i][j])
			}
		}
	}

	ComputeAdvantages(eps, baseline, 1, 1)
	for i, seq := range eps.Advantages {
		for j, x := range seq {
			if math.Abs(x) > 0.1 {
				t.Errorf("entry %d,%d: expected near-zero advantage but got %f",
					i, j, x)
			}
		}
	}
}

// packEpisodes builds an episode batch from raw
// observations and rewards, without actions.
func packEpisodes(c anyvec.Creator, obs [][][]float64,
	rewards Rewards) *Episodes {
	tape, writer := lazyseq.ReferenceTape(c)
	for t := 0; true; t++ {
		present := make([]bool, len(obs))
		var packed []float64
		for i, seq := range obs {
			if t < len(seq) {
				present[i] = true
				packed = append(packed, seq[t]...)
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
	return &Episodes{Observations: tape, Rewards: rewards}
}
