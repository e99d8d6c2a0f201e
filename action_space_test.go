package anymaml

import (
	"math"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestSoftmaxSample(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	probs := []float64{0.25, 0.6, 0.15}
	params := anyvec.Make(c, []float64{
		math.Log(probs[0]), math.Log(probs[1]), math.Log(probs[2]),
	})

	counts := make([]float64, 3)
	const numSamples = 30000
	for i := 0; i < numSamples; i++ {
		sample := Softmax{}.Sample(params, 1)
		for j, x := range c.Float64Slice(sample.Data()) {
			counts[j] += x
		}
	}

	for i, x := range probs {
		frequency := counts[i] / numSamples
		if math.Abs(frequency-x) > 0.02 {
			t.Errorf("action %d: expected frequency %f but got %f",
				i, x, frequency)
		}
	}
}

func TestSoftmaxLogProb(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	params := anydiff.NewConst(anyvec.Make(c, []float64{1, 2, 3, -1, 0, 1}))
	samples := anyvec.Make(c, []float64{0, 1, 0, 1, 0, 0})

	actual := Softmax{}.LogProb(params, samples, 2).Output()
	expected := []float64{-1.4076059644443803, -2.4076059644443803}
	assertSimilar(t, actual, expected)
}

func TestSoftmaxKL(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	params1 := anydiff.NewConst(anyvec.Make(c, []float64{1, 2, 3, -1, 0, 1}))
	params2 := anydiff.NewConst(anyvec.Make(c, []float64{3, 2, 1, -1, 0, 1}))

	actual := Softmax{}.KL(params1, params2, 2).Output()
	expected := []float64{1.1504207652351232, 0}
	assertSimilar(t, actual, expected)
}

func TestGaussianSample(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	params := anyvec.Make(c, []float64{1, -1, math.Log(0.5), math.Log(2)})

	var sums, squares [2]float64
	const numSamples = 30000
	for i := 0; i < numSamples; i++ {
		sample := c.Float64Slice(Gaussian{}.Sample(params, 1).Data())
		for j, x := range sample {
			sums[j] += x
			squares[j] += x * x
		}
	}

	means := []float64{1, -1}
	stddevs := []float64{0.5, 2}
	for i := range means {
		mean := sums[i] / numSamples
		stddev := math.Sqrt(squares[i]/numSamples - mean*mean)
		if math.Abs(mean-means[i]) > 0.05 {
			t.Errorf("component %d: expected mean %f but got %f",
				i, means[i], mean)
		}
		if math.Abs(stddev-stddevs[i]) > 0.05 {
			t.Errorf("component %d: expected stddev %f but got %f",
				i, stddevs[i], stddev)
		}
	}
}

func TestGaussianLogProb(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	params := anydiff.NewConst(anyvec.Make(c, []float64{0, 0}))
	samples := anyvec.Make(c, []float64{1})

	actual := Gaussian{}.LogProb(params, samples, 1).Output()
	expected := []float64{-0.5 - 0.5*math.Log(2*math.Pi)}
	assertSimilar(t, actual, expected)
}

func TestGaussianKL(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	params1 := anydiff.NewConst(anyvec.Make(c, []float64{0, 0.5, 0, -0.3}))
	params2 := anydiff.NewConst(anyvec.Make(c, []float64{0, 0.5, 0, -0.3}))
	actual := Gaussian{}.KL(params1, params2, 2).Output()
	assertSimilar(t, actual, []float64{0, 0})

	params3 := anydiff.NewConst(anyvec.Make(c, []float64{0, math.Log(1)}))
	params4 := anydiff.NewConst(anyvec.Make(c, []float64{1, math.Log(2)}))
	actual = Gaussian{}.KL(params3, params4, 1).Output()
	expected := []float64{math.Log(2) + 2.0/8 - 0.5}
	assertSimilar(t, actual, expected)
}

func assertSimilar(t *testing.T, actual anyvec.Vector, expected []float64) {
	t.Helper()
	actualData := actual.Creator().Float64Slice(actual.Data())
	if len(actualData) != len(expected) {
		t.Fatalf("expected length %d but got %d", len(expected),
			len(actualData))
	}
	for i, x := range expected {
		if math.Abs(actualData[i]-x) > 1e-6 {
			t.Errorf("entry %d: expected %f but got %f", i, x, actualData[i])
		}
	}
}
