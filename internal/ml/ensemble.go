package ml

import "errors"

// Classifier is the fit/predict-proba contract every model in this
// package satisfies.
type Classifier interface {
	Fit(features [][]float64, labels []int, numClasses int) error
	PredictProba(features []float64) ([]float64, error)
	Classes() int
}

// VotingEnsemble combines its members by averaging their class
// probability outputs (soft voting).
type VotingEnsemble struct {
	Members    []Classifier
	NumClasses int
}

// NewDefaultEnsemble builds the production pair: a bagged random
// forest plus a k-NN voter.
func NewDefaultEnsemble(seed int64) *VotingEnsemble {
	return &VotingEnsemble{
		Members: []Classifier{
			NewRandomForest(25, 8, seed),
			NewKNN(5),
		},
	}
}

func (e *VotingEnsemble) Fit(features [][]float64, labels []int, numClasses int) error {
	if len(e.Members) == 0 {
		return errors.New("ml: ensemble has no members")
	}
	e.NumClasses = numClasses
	for _, m := range e.Members {
		if err := m.Fit(features, labels, numClasses); err != nil {
			return err
		}
	}
	return nil
}

func (e *VotingEnsemble) PredictProba(features []float64) ([]float64, error) {
	if len(e.Members) == 0 {
		return nil, errors.New("ml: ensemble has no members")
	}
	sum := make([]float64, e.NumClasses)
	for _, m := range e.Members {
		dist, err := m.PredictProba(features)
		if err != nil {
			return nil, err
		}
		if len(dist) != e.NumClasses {
			return nil, errors.New("ml: member class count mismatch")
		}
		for i, p := range dist {
			sum[i] += p
		}
	}
	for i := range sum {
		sum[i] /= float64(len(e.Members))
	}
	return sum, nil
}

func (e *VotingEnsemble) Classes() int {
	return e.NumClasses
}

// Argmax returns the index of the largest probability. Ties resolve to
// the lowest index.
func Argmax(dist []float64) int {
	best := 0
	for i, p := range dist {
		if p > dist[best] {
			best = i
		}
	}
	return best
}
