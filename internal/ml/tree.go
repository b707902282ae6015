package ml

import (
	"errors"
	"math"
	"sort"
)

// DecisionTree is a CART classifier over a flattened node slice. Leaf
// nodes carry the full class distribution of the training rows that
// reached them, so the tree can report probabilities, not just labels.
type DecisionTree struct {
	Nodes      []TreeNode `json:"nodes"`
	NumClasses int        `json:"num_classes"`
	MaxDepth   int        `json:"max_depth"`
}

type TreeNode struct {
	FeatureIdx int       `json:"feature_idx"`
	Threshold  float64   `json:"threshold"`
	LeftChild  int       `json:"left_child"`
	RightChild int       `json:"right_child"`
	Dist       []float64 `json:"dist,omitempty"`
	IsLeaf     bool      `json:"is_leaf"`
}

func NewDecisionTree(maxDepth int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 8
	}
	return &DecisionTree{MaxDepth: maxDepth}
}

func (dt *DecisionTree) Fit(features [][]float64, labels []int, numClasses int) error {
	if len(features) == 0 || len(labels) == 0 {
		return errors.New("ml: features or labels empty")
	}
	if len(features) != len(labels) {
		return errors.New("ml: features and labels size mismatch")
	}
	if numClasses < 2 {
		return errors.New("ml: need at least two classes")
	}
	dt.NumClasses = numClasses
	dt.Nodes = dt.buildNode(features, labels, 0)
	return nil
}

func (dt *DecisionTree) PredictProba(features []float64) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("ml: tree not fitted")
	}
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			out := make([]float64, len(node.Dist))
			copy(out, node.Dist)
			return out, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return nil, errors.New("ml: feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return nil, errors.New("ml: invalid tree state")
		}
	}
}

func (dt *DecisionTree) Classes() int {
	return dt.NumClasses
}

func (dt *DecisionTree) buildNode(features [][]float64, labels []int, depth int) []TreeNode {
	if depth >= dt.MaxDepth || isPure(labels) {
		return []TreeNode{dt.leaf(labels)}
	}

	bestFeature, threshold, ok := findBestSplit(features, labels)
	if !ok {
		return []TreeNode{dt.leaf(labels)}
	}

	leftFeatures, leftLabels, rightFeatures, rightLabels := splitData(features, labels, bestFeature, threshold)
	if len(leftLabels) == 0 || len(rightLabels) == 0 {
		return []TreeNode{dt.leaf(labels)}
	}

	leftNodes := dt.buildNode(leftFeatures, leftLabels, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightLabels, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

func (dt *DecisionTree) leaf(labels []int) TreeNode {
	dist := make([]float64, dt.NumClasses)
	for _, label := range labels {
		if label >= 0 && label < dt.NumClasses {
			dist[label]++
		}
	}
	total := float64(len(labels))
	if total > 0 {
		for i := range dist {
			dist[i] /= total
		}
	}
	return TreeNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Dist:       dist,
		IsLeaf:     true,
	}
}

func findBestSplit(features [][]float64, labels []int) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for _, threshold := range candidateThresholds(features, featureIdx) {
			leftLabels, rightLabels := splitLabels(features, labels, featureIdx, threshold)
			if len(leftLabels) == 0 || len(rightLabels) == 0 {
				continue
			}
			impurity := weightedGini(leftLabels, rightLabels)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

// candidateThresholds returns the midpoints between consecutive
// distinct values of one feature.
func candidateThresholds(features [][]float64, featureIdx int) []float64 {
	values := make([]float64, 0, len(features))
	seen := make(map[float64]bool, len(features))
	for _, row := range features {
		v := row[featureIdx]
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Float64s(values)
	thresholds := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		thresholds = append(thresholds, (values[i-1]+values[i])/2)
	}
	return thresholds
}

func splitData(features [][]float64, labels []int, featureIdx int, threshold float64) ([][]float64, []int, [][]float64, []int) {
	leftFeatures := make([][]float64, 0)
	leftLabels := make([]int, 0)
	rightFeatures := make([][]float64, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftFeatures, leftLabels, rightFeatures, rightLabels
}

func splitLabels(features [][]float64, labels []int, featureIdx int, threshold float64) ([]int, []int) {
	leftLabels := make([]int, 0)
	rightLabels := make([]int, 0)
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftLabels = append(leftLabels, labels[i])
		} else {
			rightLabels = append(rightLabels, labels[i])
		}
	}
	return leftLabels, rightLabels
}

func weightedGini(leftLabels, rightLabels []int) float64 {
	leftWeight := float64(len(leftLabels))
	rightWeight := float64(len(rightLabels))
	total := leftWeight + rightWeight
	return (leftWeight/total)*gini(leftLabels) + (rightWeight/total)*gini(rightLabels)
}

func gini(labels []int) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	impurity := 1.0
	for _, count := range counts {
		prob := float64(count) / float64(len(labels))
		impurity -= prob * prob
	}
	return impurity
}

func isPure(labels []int) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, label := range labels[1:] {
		if label != first {
			return false
		}
	}
	return true
}
