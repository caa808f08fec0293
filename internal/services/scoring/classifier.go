package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrModelUnavailable is returned when a classifier cannot be fit or loaded.
var ErrModelUnavailable = errors.New("model unavailable")

// Classifier is a multi-class probabilistic model over NumClasses ordered classes.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	PredictProba(x [][]float64) ([][]float64, error)
}

// SoftmaxConfig tunes the softmax regression fit.
type SoftmaxConfig struct {
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	L2           float64 `json:"l2"`
}

// DefaultSoftmaxConfig is used when a field is left zero.
var DefaultSoftmaxConfig = SoftmaxConfig{Epochs: 300, LearningRate: 0.1, L2: 1e-3}

// Softmax is a multinomial logistic regression fit by full-batch gradient
// descent from zero weights, so fits are deterministic.
type Softmax struct {
	cfg SoftmaxConfig
	// weights is NumClasses x (1+features); column 0 is the bias
	weights *mat.Dense
}

// NewSoftmax returns an unfitted model.
func NewSoftmax(cfg SoftmaxConfig) *Softmax {
	if cfg.Epochs <= 0 {
		cfg.Epochs = DefaultSoftmaxConfig.Epochs
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultSoftmaxConfig.LearningRate
	}
	if cfg.L2 < 0 {
		cfg.L2 = DefaultSoftmaxConfig.L2
	}
	return &Softmax{cfg: cfg}
}

// designMatrix prepends a constant bias column to x.
func designMatrix(x [][]float64, d int) *mat.Dense {
	xb := mat.NewDense(len(x), d+1, nil)
	for i, row := range x {
		xb.Set(i, 0, 1)
		copy(xb.RawRowView(i)[1:], row)
	}
	return xb
}

// Fit replaces any previous weights.
func (m *Softmax) Fit(x [][]float64, y []int) error {
	if len(x) == 0 {
		return fmt.Errorf("fit on empty sample: %w", ErrModelUnavailable)
	}
	if len(x) != len(y) {
		return fmt.Errorf("fit %d rows with %d labels: %w", len(x), len(y), ErrModelUnavailable)
	}
	d := len(x[0])
	for i, row := range x {
		if len(row) != d {
			return fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), d, ErrModelUnavailable)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d has a non-finite feature: %w", i, ErrModelUnavailable)
			}
		}
		if y[i] < 0 || y[i] >= NumClasses {
			return fmt.Errorf("row %d label %d out of range: %w", i, y[i], ErrModelUnavailable)
		}
	}

	n := len(x)
	xb := designMatrix(x, d)
	onehot := mat.NewDense(n, NumClasses, nil)
	for i, c := range y {
		onehot.Set(i, c, 1)
	}
	w := mat.NewDense(NumClasses, d+1, nil)
	resid := mat.NewDense(n, NumClasses, nil)
	grad := mat.NewDense(NumClasses, d+1, nil)
	penalty := mat.NewDense(NumClasses, d+1, nil)
	var logits mat.Dense
	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		logits.Mul(xb, w.T())
		softmaxRows(resid, &logits)
		resid.Sub(resid, onehot)
		grad.Mul(resid.T(), xb)
		grad.Scale(1/float64(n), grad)

		// the bias is not penalized
		penalty.Scale(m.cfg.L2, w)
		for k := 0; k < NumClasses; k++ {
			penalty.Set(k, 0, 0)
		}
		grad.Add(grad, penalty)
		grad.Scale(m.cfg.LearningRate, grad)
		w.Sub(w, grad)
	}
	m.weights = w
	return nil
}

// PredictProba returns one probability vector of length NumClasses per row.
func (m *Softmax) PredictProba(x [][]float64) ([][]float64, error) {
	if m.weights == nil {
		return nil, fmt.Errorf("predict before fit: %w", ErrModelUnavailable)
	}
	_, cols := m.weights.Dims()
	d := cols - 1
	for i, row := range x {
		if len(row) != d {
			return nil, fmt.Errorf("row %d has %d features, want %d: %w", i, len(row), d, ErrModelUnavailable)
		}
	}
	out := make([][]float64, len(x))
	if len(x) == 0 {
		return out, nil
	}
	var logits mat.Dense
	logits.Mul(designMatrix(x, d), m.weights.T())
	probs := mat.NewDense(len(x), NumClasses, nil)
	softmaxRows(probs, &logits)
	for i := range out {
		out[i] = mat.Row(nil, i, probs)
	}
	return out, nil
}

// softmaxRows writes the row-wise softmax of logits into dst.
func softmaxRows(dst *mat.Dense, logits *mat.Dense) {
	rows, _ := logits.Dims()
	for i := 0; i < rows; i++ {
		z := logits.RawRowView(i)
		p := dst.RawRowView(i)
		maxLogit := floats.Max(z)
		for k, v := range z {
			p[k] = math.Exp(v - maxLogit)
		}
		floats.Scale(1/floats.Sum(p), p)
	}
}

type softmaxState struct {
	Config  SoftmaxConfig `json:"config"`
	Weights [][]float64   `json:"weights"`
}

// MarshalJSON encodes the fitted weights.
func (m *Softmax) MarshalJSON() ([]byte, error) {
	st := softmaxState{Config: m.cfg}
	if m.weights != nil {
		rows, _ := m.weights.Dims()
		st.Weights = make([][]float64, rows)
		for k := range st.Weights {
			st.Weights[k] = mat.Row(nil, k, m.weights)
		}
	}
	return json.Marshal(st)
}

// UnmarshalJSON restores a fitted model.
func (m *Softmax) UnmarshalJSON(b []byte) error {
	var st softmaxState
	if err := json.Unmarshal(b, &st); err != nil {
		return err
	}
	if len(st.Weights) != NumClasses {
		return fmt.Errorf("artifact has %d classes, want %d: %w", len(st.Weights), NumClasses, ErrModelUnavailable)
	}
	cols := len(st.Weights[0])
	for k, row := range st.Weights {
		if len(row) == 0 || len(row) != cols {
			return fmt.Errorf("artifact class %d has %d weights: %w", k, len(row), ErrModelUnavailable)
		}
	}
	w := mat.NewDense(NumClasses, cols, nil)
	for k, row := range st.Weights {
		w.SetRow(k, row)
	}
	m.cfg = st.Config
	m.weights = w
	return nil
}

// ExpectedScore maps class probabilities onto [-1, 1] as
// (Σ p_k·k − mid) / mid with mid the middle class index.
func ExpectedScore(probs []float64) float64 {
	idx := make([]float64, len(probs))
	for k := range idx {
		idx[k] = float64(k)
	}
	mid := float64(NumClasses-1) / 2
	return (floats.Dot(probs, idx) - mid) / mid
}

// argmax returns the first index holding the largest probability.
func argmax(p []float64) int { return floats.MaxIdx(p) }
