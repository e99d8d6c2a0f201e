package anymaml

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
	"github.com/unixpickle/lazyseq"
)

func testRollout(t *testing.T, c anyvec.Creator, policy Policy,
	params anyvec.Vector) *Episodes {
	t.Helper()
	roller := &Roller{
		Policy:      policy,
		ActionSpace: Softmax{},
		Creator:     c,
	}
	eps, err := roller.Rollout(params, &countEnv{length: 4},
		&countEnv{length: 2}, &countEnv{length: 3})
	if err != nil {
		t.Fatal(err)
	}
	ComputeAdvantages(eps, &LinearBaseline{}, 0.9, 0.95)
	return eps
}

func TestSurrogateAtCollection(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	policy := &MLP{InCount: 1, OutCount: 2, Hidden: []int{4}}
	params := policy.InitParams(c)
	eps := testRollout(t, c, policy, params)

	// At the collection parameters every probability ratio
	// is 1, so the objective is the mean advantage.
	actual := scalarValue(SurrogateObjective(policy, Softmax{}, eps,
		anydiff.NewConst(params)))
	expected := scalarValue(lazyseq.Mean(
		lazyseq.TapeRereader(eps.Advantages.Tape(c))))
	if math.Abs(actual-expected) > 1e-8 {
		t.Errorf("expected %f but got %f", expected, actual)
	}
}

func TestMeanKLAtCollection(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	policy := &MLP{InCount: 1, OutCount: 2, Hidden: []int{4}}
	params := policy.InitParams(c)
	eps := testRollout(t, c, policy, params)

	kl := scalarValue(MeanKL(policy, Softmax{}, eps, anydiff.NewConst(params)))
	if math.Abs(kl) > 1e-10 {
		t.Errorf("expected zero KL but got %e", kl)
	}
}

func TestAdaptZeroRate(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	policy := &MLP{InCount: 1, OutCount: 2, Hidden: []int{4}}
	params := policy.InitParams(c)
	eps := testRollout(t, c, policy, params)

	adapted := Adapt(policy, Softmax{}, eps, params, 0)
	before := c.Float64Slice(params.Data())
	after := c.Float64Slice(adapted.Data())
	for i, x := range before {
		if after[i] != x {
			t.Fatalf("entry %d: expected %v but got %v", i, x, after[i])
		}
	}
}

func TestAdaptImproves(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	policy := &MLP{InCount: 1, OutCount: 2, Hidden: []int{4}}
	params := policy.InitParams(c)
	eps := testRollout(t, c, policy, params)

	adapted := Adapt(policy, Softmax{}, eps, params, 0.01)
	before := scalarValue(ReinforceObjective(policy, Softmax{}, eps,
		anydiff.NewConst(params)))
	after := scalarValue(ReinforceObjective(policy, Softmax{}, eps,
		anydiff.NewConst(adapted)))
	if after < before-1e-12 {
		t.Errorf("objective decreased from %f to %f", before, after)
	}
}

func scalarValue(res anydiff.Res) float64 {
	out := res.Output()
	return out.Creator().Float64Slice(out.Data())[0]
}
