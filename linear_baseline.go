package anymaml

import (
	"errors"
	"sync"

	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/mat"
)

// Default regularization coefficient for LinearBaseline
// fits.
const DefaultBaselineReg = 1e-5

// How many times a LinearBaseline fit multiplies the
// regularizer by 10 before giving up on a singular
// system.
const baselineRegRetries = 5

// LinearBaseline is a Baseline which is linear in a fixed
// set of features of the observation and the timestep:
// the observation, its square, and a cubic polynomial of
// the scaled timestep.
type LinearBaseline struct {
	// Discount is the reward discount used to compute
	// the empirical returns the baseline is fit to.
	// If 0, no discount is used.
	Discount float64

	// Reg is the coefficient of the ridge regularizer
	// used for the least-squares fit.
	// If 0, DefaultBaselineReg is used.
	Reg float64

	coeffsLock sync.RWMutex
	coeffs     []float64
}

// Fit fits the baseline coefficients to the discounted
// returns of the episode batches by regularized least
// squares.
func (l *LinearBaseline) Fit(batches ...*Episodes) (err error) {
	defer essentials.AddCtxTo("fit linear baseline", &err)

	var rows [][]float64
	var targets []float64
	for _, eps := range batches {
		if eps == nil {
			continue
		}
		obs := eps.SplitObservations()
		for i, rewSeq := range eps.Rewards {
			returns := make([]float64, len(rewSeq))
			var sum float64
			for t := len(rewSeq) - 1; t >= 0; t-- {
				if l.Discount != 0 {
					sum *= l.Discount
				}
				sum += rewSeq[t]
				returns[t] = sum
			}
			for t := range rewSeq {
				rows = append(rows, baselineFeatures(obs[i][t], t))
				targets = append(targets, returns[t])
			}
		}
	}
	if len(rows) == 0 {
		return errors.New("no timesteps")
	}

	numFeatures := len(rows[0])
	flat := make([]float64, 0, len(rows)*numFeatures)
	for _, row := range rows {
		flat = append(flat, row...)
	}
	design := mat.NewDense(len(rows), numFeatures, flat)
	targetVec := mat.NewVecDense(len(targets), targets)

	var gram mat.Dense
	gram.Mul(design.T(), design)
	var proj mat.VecDense
	proj.MulVec(design.T(), targetVec)

	reg := l.Reg
	if reg == 0 {
		reg = DefaultBaselineReg
	}
	for i := 0; i < baselineRegRetries; i++ {
		var lhs mat.Dense
		lhs.CloneFrom(&gram)
		for j := 0; j < numFeatures; j++ {
			lhs.Set(j, j, lhs.At(j, j)+reg)
		}
		var solution mat.VecDense
		if err := solution.SolveVec(&lhs, &proj); err == nil {
			coeffs := make([]float64, numFeatures)
			for j := range coeffs {
				coeffs[j] = solution.AtVec(j)
			}
			l.coeffsLock.Lock()
			l.coeffs = coeffs
			l.coeffsLock.Unlock()
			return nil
		}
		reg *= 10
	}
	return errors.New("normal equations are singular")
}

// Predict returns value estimates for every timestep.
//
// An unfitted baseline predicts zero everywhere.
func (l *LinearBaseline) Predict(eps *Episodes) [][]float64 {
	l.coeffsLock.RLock()
	coeffs := l.coeffs
	l.coeffsLock.RUnlock()

	obs := eps.SplitObservations()
	res := make([][]float64, len(obs))
	for i, seq := range obs {
		values := make([]float64, len(seq))
		if coeffs != nil {
			for t, o := range seq {
				var sum float64
				for j, x := range baselineFeatures(o, t) {
					sum += x * coeffs[j]
				}
				values[t] = sum
			}
		}
		res[i] = values
	}
	return res
}

func baselineFeatures(obs []float64, t int) []float64 {
	res := make([]float64, 0, 2*len(obs)+4)
	res = append(res, obs...)
	for _, x := range obs {
		res = append(res, x*x)
	}
	scaledT := float64(t) / 100
	res = append(res, scaledT, scaledT*scaledT, scaledT*scaledT*scaledT, 1)
	return res
}
