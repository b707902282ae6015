package ml

import (
	"errors"
	"math/rand"
)

// RandomForest bags seeded-bootstrap decision trees and averages their
// class distributions.
type RandomForest struct {
	Trees      []*DecisionTree `json:"trees"`
	NumTrees   int             `json:"num_trees"`
	MaxDepth   int             `json:"max_depth"`
	Seed       int64           `json:"seed"`
	NumClasses int             `json:"num_classes"`
}

func NewRandomForest(numTrees, maxDepth int, seed int64) *RandomForest {
	if numTrees <= 0 {
		numTrees = 25
	}
	return &RandomForest{NumTrees: numTrees, MaxDepth: maxDepth, Seed: seed}
}

func (rf *RandomForest) Fit(features [][]float64, labels []int, numClasses int) error {
	if len(features) == 0 {
		return errors.New("ml: features empty")
	}
	if len(features) != len(labels) {
		return errors.New("ml: features and labels size mismatch")
	}
	rf.NumClasses = numClasses
	rf.Trees = make([]*DecisionTree, 0, rf.NumTrees)

	rnd := rand.New(rand.NewSource(rf.Seed))
	n := len(features)
	for t := 0; t < rf.NumTrees; t++ {
		sampleX := make([][]float64, n)
		sampleY := make([]int, n)
		for i := 0; i < n; i++ {
			idx := rnd.Intn(n)
			sampleX[i] = features[idx]
			sampleY[i] = labels[idx]
		}
		tree := NewDecisionTree(rf.MaxDepth)
		if err := tree.Fit(sampleX, sampleY, numClasses); err != nil {
			return err
		}
		rf.Trees = append(rf.Trees, tree)
	}
	return nil
}

func (rf *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, errors.New("ml: forest not fitted")
	}
	sum := make([]float64, rf.NumClasses)
	for _, tree := range rf.Trees {
		dist, err := tree.PredictProba(features)
		if err != nil {
			return nil, err
		}
		for i, p := range dist {
			sum[i] += p
		}
	}
	for i := range sum {
		sum[i] /= float64(len(rf.Trees))
	}
	return sum, nil
}

func (rf *RandomForest) Classes() int {
	return rf.NumClasses
}
