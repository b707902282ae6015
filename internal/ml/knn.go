package ml

import (
	"errors"
	"math"
	"sort"
)

// KNN is a k-nearest-neighbours classifier. Probabilities are the
// class share among the k nearest training rows by Euclidean distance.
type KNN struct {
	K          int         `json:"k"`
	X          [][]float64 `json:"x"`
	Y          []int       `json:"y"`
	NumClasses int         `json:"num_classes"`
}

func NewKNN(k int) *KNN {
	if k <= 0 {
		k = 5
	}
	return &KNN{K: k}
}

func (m *KNN) Fit(features [][]float64, labels []int, numClasses int) error {
	if len(features) == 0 {
		return errors.New("ml: features empty")
	}
	if len(features) != len(labels) {
		return errors.New("ml: features and labels size mismatch")
	}
	m.X = features
	m.Y = labels
	m.NumClasses = numClasses
	return nil
}

func (m *KNN) PredictProba(features []float64) ([]float64, error) {
	if len(m.X) == 0 {
		return nil, errors.New("ml: knn not fitted")
	}

	type neighbour struct {
		dist  float64
		label int
	}
	neighbours := make([]neighbour, len(m.X))
	for i, row := range m.X {
		if len(row) != len(features) {
			return nil, errors.New("ml: feature length mismatch")
		}
		var d float64
		for j := range row {
			diff := row[j] - features[j]
			d += diff * diff
		}
		neighbours[i] = neighbour{dist: math.Sqrt(d), label: m.Y[i]}
	}
	sort.Slice(neighbours, func(i, j int) bool {
		if neighbours[i].dist != neighbours[j].dist {
			return neighbours[i].dist < neighbours[j].dist
		}
		return neighbours[i].label < neighbours[j].label
	})

	k := m.K
	if k > len(neighbours) {
		k = len(neighbours)
	}
	dist := make([]float64, m.NumClasses)
	for _, n := range neighbours[:k] {
		if n.label >= 0 && n.label < m.NumClasses {
			dist[n.label]++
		}
	}
	for i := range dist {
		dist[i] /= float64(k)
	}
	return dist, nil
}

func (m *KNN) Classes() int {
	return m.NumClasses
}
