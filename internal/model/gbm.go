package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// GBMOptions configures gradient boosting
type GBMOptions struct {
	Trees               int
	LearningRate        float64
	MaxDepth            int
	MinSamplesLeaf      int
	L2                  float64
	Bins                int
	EarlyStoppingRounds int
}

func (o GBMOptions) withDefaults() GBMOptions {
	if o.Trees <= 0 {
		o.Trees = 500
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.05
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = 4
	}
	if o.MinSamplesLeaf <= 0 {
		o.MinSamplesLeaf = 1
	}
	if o.L2 < 0 {
		o.L2 = 0
	}
	if o.Bins < 2 {
		o.Bins = 32
	}
	return o
}

// minSplitGain rejects splits that do not reduce the loss
const minSplitGain = 1e-9

type treeNode struct {
	// Feature is -1 on leaves.
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	// Value is the shrunk prediction of the node, also kept on internal
	// nodes for path attribution.
	Value float64 `json:"value"`
	Gain  float64 `json:"gain,omitempty"`
}

type regressionTree struct {
	Nodes []treeNode `json:"nodes"`
}

func (t *regressionTree) predict(x []float64) float64 {
	n := 0
	for t.Nodes[n].Feature >= 0 {
		node := t.Nodes[n]
		if x[node.Feature] <= node.Threshold {
			n = node.Left
		} else {
			n = node.Right
		}
	}
	return t.Nodes[n].Value
}

// attribute adds the change in node value along the decision path to the
// split feature's contribution and returns the root value.
func (t *regressionTree) attribute(x, contrib []float64) float64 {
	n := 0
	for t.Nodes[n].Feature >= 0 {
		node := t.Nodes[n]
		next := node.Right
		if x[node.Feature] <= node.Threshold {
			next = node.Left
		}
		contrib[node.Feature] += t.Nodes[next].Value - node.Value
		n = next
	}
	return t.Nodes[0].Value
}

// GradientBoosting is an ensemble of regression trees fitted on binary log-loss
type GradientBoosting struct {
	InitialLogit float64          `json:"initial_logit"`
	Trees        []regressionTree `json:"trees"`
	Width        int              `json:"width"`
}

func (g *GradientBoosting) contributions(x []float64) (float64, []float64) {
	contrib := make([]float64, g.Width)
	bias := g.InitialLogit
	for i := range g.Trees {
		bias += g.Trees[i].attribute(x, contrib)
	}
	return bias, contrib
}

func (g *GradientBoosting) importances() []float64 {
	out := make([]float64, g.Width)
	for _, tree := range g.Trees {
		for _, node := range tree.Nodes {
			if node.Feature >= 0 {
				out[node.Feature] += node.Gain
			}
		}
	}
	return out
}

// fitGradientBoosting grows trees on histogram-binned features. When validation
// rows are given, training stops after EarlyStoppingRounds trees without a
// validation log-loss improvement and keeps the best prefix.
func fitGradientBoosting(X [][]float64, y []float64, valX [][]float64, valY []float64, opts GBMOptions) *GradientBoosting {
	opts = opts.withDefaults()
	n := len(X)
	width := 0
	if n > 0 {
		width = len(X[0])
	}

	g := &GradientBoosting{
		InitialLogit: baseLogit(y),
		Width:        width,
	}

	thresholds := make([][]float64, width)
	for j := 0; j < width; j++ {
		col := make([]float64, n)
		for i := range X {
			col[i] = X[i][j]
		}
		thresholds[j] = binThresholds(col, opts.Bins)
	}

	binned := make([][]int, n)
	for i, x := range X {
		binned[i] = make([]int, width)
		for j, v := range x {
			binned[i][j] = sort.SearchFloat64s(thresholds[j], v)
		}
	}

	F := make([]float64, n)
	for i := range F {
		F[i] = g.InitialLogit
	}
	valF := make([]float64, len(valX))
	for i := range valF {
		valF[i] = g.InitialLogit
	}

	grower := &treeGrower{
		binned:     binned,
		thresholds: thresholds,
		grad:       make([]float64, n),
		hess:       make([]float64, n),
		opts:       opts,
	}

	earlyStop := len(valX) > 0 && opts.EarlyStoppingRounds > 0
	bestLoss := math.Inf(1)
	bestTrees := 0
	stale := 0

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for m := 0; m < opts.Trees; m++ {
		for i := range F {
			p := sigmoid(F[i])
			grower.grad[i] = p - y[i]
			grower.hess[i] = math.Max(p*(1-p), 1e-16)
		}

		tree := grower.grow(all)
		for i, x := range X {
			F[i] += tree.predict(x)
		}
		g.Trees = append(g.Trees, tree)

		if !earlyStop {
			continue
		}
		for i, x := range valX {
			valF[i] += tree.predict(x)
		}
		loss := logLossFromLogits(valF, valY)
		if loss < bestLoss-1e-12 {
			bestLoss = loss
			bestTrees = len(g.Trees)
			stale = 0
			continue
		}
		stale++
		if stale >= opts.EarlyStoppingRounds {
			break
		}
	}

	if earlyStop {
		g.Trees = g.Trees[:bestTrees]
	}
	return g
}

type treeGrower struct {
	binned     [][]int
	thresholds [][]float64
	grad       []float64
	hess       []float64
	opts       GBMOptions
	nodes      []treeNode
}

func (t *treeGrower) grow(rows []int) regressionTree {
	t.nodes = nil
	t.build(rows, 0)
	return regressionTree{Nodes: t.nodes}
}

func (t *treeGrower) build(rows []int, depth int) int {
	var G, H float64
	for _, i := range rows {
		G += t.grad[i]
		H += t.hess[i]
	}

	id := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{
		Feature: -1,
		Value:   -G / (H + t.opts.L2) * t.opts.LearningRate,
	})

	if depth >= t.opts.MaxDepth || len(rows) < 2*t.opts.MinSamplesLeaf {
		return id
	}

	feature, bin, gain := t.bestSplit(rows, G, H)
	if feature < 0 || gain <= minSplitGain {
		return id
	}

	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, i := range rows {
		if t.binned[i][feature] <= bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := t.build(left, depth+1)
	r := t.build(right, depth+1)

	t.nodes[id].Feature = feature
	t.nodes[id].Threshold = t.thresholds[feature][bin]
	t.nodes[id].Left = l
	t.nodes[id].Right = r
	t.nodes[id].Gain = gain
	return id
}

func (t *treeGrower) bestSplit(rows []int, G, H float64) (int, int, float64) {
	lambda := t.opts.L2
	minLeaf := t.opts.MinSamplesLeaf
	parent := G * G / (H + lambda)

	bestFeature, bestBin, bestGain := -1, -1, 0.0
	for f, thr := range t.thresholds {
		if len(thr) == 0 {
			continue
		}
		bins := len(thr) + 1
		hg := make([]float64, bins)
		hh := make([]float64, bins)
		hc := make([]int, bins)
		for _, i := range rows {
			b := t.binned[i][f]
			hg[b] += t.grad[i]
			hh[b] += t.hess[i]
			hc[b]++
		}

		var GL, HL float64
		CL := 0
		for b := 0; b < bins-1; b++ {
			GL += hg[b]
			HL += hh[b]
			CL += hc[b]
			CR := len(rows) - CL
			if CL < minLeaf {
				continue
			}
			if CR < minLeaf {
				break
			}
			GR, HR := G-GL, H-HL
			gain := 0.5 * (GL*GL/(HL+lambda) + GR*GR/(HR+lambda) - parent)
			if gain > bestGain {
				bestFeature, bestBin, bestGain = f, b, gain
			}
		}
	}
	return bestFeature, bestBin, bestGain
}

// binThresholds returns ascending split points. A value v falls in bin
// i when thresholds[i-1] < v <= thresholds[i].
func binThresholds(col []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), col...)
	sort.Float64s(sorted)

	unique := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) < 2 {
		return nil
	}

	if len(unique) <= maxBins {
		out := make([]float64, len(unique)-1)
		for i := range out {
			out[i] = (unique[i] + unique[i+1]) / 2
		}
		return out
	}

	top := unique[len(unique)-1]
	out := make([]float64, 0, maxBins-1)
	for k := 1; k < maxBins; k++ {
		q := stat.Quantile(float64(k)/float64(maxBins), stat.Empirical, sorted, nil)
		if q >= top {
			break
		}
		if len(out) == 0 || q > out[len(out)-1] {
			out = append(out, q)
		}
	}
	return out
}

func baseLogit(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	p := math.Min(math.Max(stat.Mean(y, nil), 1e-6), 1-1e-6)
	return math.Log(p / (1 - p))
}
