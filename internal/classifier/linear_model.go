package classifier

import (
	"fmt"
	"math"
	"sort"
)

// DefaultAlpha is the L2 regularization strength
const DefaultAlpha = 1e-4

// LinearModel is a logistic-loss linear model trained one example at a time with SGD.
// Weights are kept sparse since hashed text only touches a handful of dimensions.
type LinearModel struct {
	Weights map[uint32]float64
	Bias    float64
	Alpha   float64
	// Steps counts the examples seen so far; it drives the learning rate
	Steps int64

	t0 float64
}

// NewLinearModel returns an untrained model
func NewLinearModel(alpha float64) *LinearModel {
	if alpha <= 0 {
		alpha = DefaultAlpha
	}
	m := &LinearModel{
		Weights: make(map[uint32]float64),
		Alpha:   alpha,
	}
	m.init()
	return m
}

// init derives the optimal-schedule offset from alpha
func (m *LinearModel) init() {
	typw := math.Sqrt(1.0 / math.Sqrt(m.Alpha))
	eta0 := typw / math.Max(1.0, math.Abs(logLossGradient(-typw, 1.0)))
	m.t0 = 1.0 / (eta0 * m.Alpha)
}

// Decision returns the signed distance of x from the decision boundary
func (m *LinearModel) Decision(x Vector) float64 {
	sum := m.Bias
	for _, f := range x {
		sum += m.Weights[f.Index] * f.Value
	}
	return sum
}

// Probability returns P(label=1 | x)
func (m *LinearModel) Probability(x Vector) float64 {
	return sigmoid(m.Decision(x))
}

// Predict returns 1 when x falls on the positive side of the boundary, else 0
func (m *LinearModel) Predict(x Vector) int {
	if m.Decision(x) > 0 {
		return 1
	}
	return 0
}

// PartialFit performs a single SGD step toward label (0 or 1)
func (m *LinearModel) PartialFit(x Vector, label int) {
	if m.t0 == 0 {
		m.init()
	}
	y := -1.0
	if label == 1 {
		y = 1.0
	}

	eta := 1.0 / (m.Alpha * (m.t0 + float64(m.Steps)))
	update := -eta * logLossGradient(m.Decision(x), y)

	decay := math.Max(0, 1.0-eta*m.Alpha)
	for idx, w := range m.Weights {
		w *= decay
		if w == 0 {
			delete(m.Weights, idx)
			continue
		}
		m.Weights[idx] = w
	}
	if update != 0 {
		for _, f := range x {
			m.Weights[f.Index] += update * f.Value
		}
	}
	m.Bias += update
	m.Steps++
}

// Clone returns a deep copy
func (m *LinearModel) Clone() *LinearModel {
	c := &LinearModel{
		Weights: make(map[uint32]float64, len(m.Weights)),
		Bias:    m.Bias,
		Alpha:   m.Alpha,
		Steps:   m.Steps,
		t0:      m.t0,
	}
	for k, v := range m.Weights {
		c.Weights[k] = v
	}
	return c
}

// Validate reports whether the parameters are usable within a space of dims dimensions
func (m *LinearModel) Validate(dims uint32) error {
	if !isFinite(m.Alpha) || m.Alpha <= 0 {
		return fmt.Errorf("invalid alpha %v", m.Alpha)
	}
	if !isFinite(m.Bias) {
		return fmt.Errorf("non-finite bias")
	}
	if m.Steps < 0 {
		return fmt.Errorf("negative step count %d", m.Steps)
	}
	for idx, w := range m.Weights {
		if idx >= dims {
			return fmt.Errorf("weight index %d outside %d dimensions", idx, dims)
		}
		if !isFinite(w) {
			return fmt.Errorf("non-finite weight at %d", idx)
		}
	}
	return nil
}

// sortedIndices returns the weight indices in ascending order
func (m *LinearModel) sortedIndices() []uint32 {
	out := make([]uint32, 0, len(m.Weights))
	for idx := range m.Weights {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// logLossGradient is d/dp of log(1+exp(-y*p))
func logLossGradient(p, y float64) float64 {
	z := p * y
	switch {
	case z > 18.0:
		return math.Exp(-z) * -y
	case z < -18.0:
		return -y
	default:
		return -y / (math.Exp(z) + 1.0)
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
