package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/creasty/defaults"

	"MacroPulse/internal/domain/models"
	"MacroPulse/internal/domain/repository"
	domsvc "MacroPulse/internal/domain/service"
	"MacroPulse/pkg/logger"
)

// Walk-forward defaults.
const (
	DefaultLookback   = 252
	DefaultTestWindow = 63
	DefaultPurgeGap   = 5
)

const artifactVersion = 1

// Options configures a Scorer. Unset fields take the walk-forward defaults.
type Options struct {
	Lookback   int `default:"252"`
	TestWindow int `default:"63"`
	// PurgeGap is nil for the default; zero disables purging.
	PurgeGap *int `default:"5"`
	Softmax  SoftmaxConfig
	// NewClassifier overrides the model used for every fit.
	NewClassifier func() Classifier
}

// Purge returns a PurgeGap option value.
func Purge(n int) *int { return &n }

// Artifact is the persisted form of a trained model.
type Artifact struct {
	Version   int             `json:"version"`
	Key       string          `json:"key"`
	Features  []string        `json:"features"`
	TrainedAt time.Time       `json:"trained_at"`
	Rows      int             `json:"rows"`
	Accuracy  float64         `json:"cv_accuracy"`
	Model     json.RawMessage `json:"model"`
}

// Scorer produces walk-forward out-of-sample scores.
type Scorer struct {
	opts  Options
	store repository.ModelStore
	log   *logger.Logger
}

// NewScorer builds a scorer. store may be nil when only Historical is used.
func NewScorer(store repository.ModelStore, log *logger.Logger, opts Options) *Scorer {
	if log == nil {
		log = logger.Nop()
	}
	if err := defaults.Set(&opts); err != nil {
		log.Warn("scorer defaults", logger.Error(err))
	}
	return &Scorer{opts: opts, store: store, log: log}
}

func (s *Scorer) newModel() Classifier {
	if s.opts.NewClassifier != nil {
		return s.opts.NewClassifier()
	}
	return NewSoftmax(s.opts.Softmax)
}

type trainingSet struct {
	frame    *models.Frame
	features []string
	x        [][]float64
	y        []int
}

func (s *Scorer) buildTrainingSet(frame *models.Frame) (*trainingSet, error) {
	feat, err := PrepareFeatures(frame, s.opts.Lookback)
	if err != nil {
		return nil, err
	}
	data, err := BuildTargets(feat, s.opts.Lookback)
	if err != nil {
		return nil, err
	}
	cols := FeatureColumns(feat)
	x, err := Matrix(data, cols)
	if err != nil {
		return nil, err
	}
	y, err := Labels(data)
	if err != nil {
		return nil, err
	}
	return &trainingSet{frame: data, features: cols, x: x, y: y}, nil
}

// Historical scores every row of frame out of sample. The result always has
// one score per input row: rows outside every test block score 0, and any
// failure yields all zeros with a neutral fallback status.
func (s *Scorer) Historical(frame *models.Frame) (res models.ScoreResult) {
	n := 0
	if frame != nil {
		n = frame.Len()
	}
	defer func() {
		if r := recover(); r != nil {
			res = models.NeutralScores(n, fmt.Errorf("historical scoring panicked: %v: %w", r, ErrModelUnavailable))
		}
		if res.Fallback() {
			s.log.Warn("walk-forward scoring fell back to neutral", logger.Error(res.Err), logger.Int("rows", n))
		}
	}()

	ts, err := s.buildTrainingSet(frame)
	if err != nil {
		return models.NeutralScores(n, err)
	}
	splits := PurgedSplits(len(ts.x), s.opts.Lookback, s.opts.TestWindow, *s.opts.PurgeGap)
	if len(splits) == 0 {
		return models.NeutralScores(n, fmt.Errorf("no walk-forward split over %d rows: %w", len(ts.x), models.ErrInsufficientHistory))
	}

	pos := make(map[time.Time]int, n)
	for i, t := range frame.Index() {
		pos[t] = i
	}
	dataIdx := ts.frame.Index()

	scores := make([]float64, n)
	hits, total := 0, 0
	for _, sp := range splits {
		model := s.newModel()
		if err := model.Fit(rowsOf(ts.x, sp.TrainStart, sp.TrainEnd), ts.y[sp.TrainStart:sp.TrainEnd]); err != nil {
			return models.NeutralScores(n, err)
		}
		probs, err := model.PredictProba(rowsOf(ts.x, sp.TestStart, sp.TestEnd))
		if err != nil {
			return models.NeutralScores(n, err)
		}
		for j, p := range probs {
			row := sp.TestStart + j
			scores[pos[dataIdx[row]]] = ExpectedScore(p)
			if argmax(p) == ts.y[row] {
				hits++
			}
			total++
		}
	}
	return models.ScoreResult{
		Scores:   scores,
		Status:   models.ScoreComputed,
		Splits:   len(splits),
		Accuracy: float64(hits) / float64(total),
	}
}

// Train fits a model on the full dataset of frame after logging the
// walk-forward accuracy, and persists it under key.
func (s *Scorer) Train(ctx context.Context, key string, frame *models.Frame) error {
	_, err := s.train(ctx, key, frame)
	return err
}

func (s *Scorer) train(ctx context.Context, key string, frame *models.Frame) (*Artifact, error) {
	if s.store == nil {
		return nil, fmt.Errorf("train %s: no model store: %w", key, ErrModelUnavailable)
	}
	start := time.Now()
	ts, err := s.buildTrainingSet(frame)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", key, err)
	}

	hist := s.Historical(frame)
	if !hist.Fallback() {
		s.log.Info("walk-forward accuracy",
			logger.String("key", key),
			logger.Int("splits", hist.Splits),
			logger.Float("cv_accuracy", hist.Accuracy),
		)
	}

	model := s.newModel()
	if err := model.Fit(ts.x, ts.y); err != nil {
		return nil, fmt.Errorf("train %s: %w", key, err)
	}
	raw, err := json.Marshal(model)
	if err != nil {
		return nil, fmt.Errorf("encode model %s: %w", key, err)
	}
	art := &Artifact{
		Version:   artifactVersion,
		Key:       key,
		Features:  ts.features,
		TrainedAt: time.Now().UTC(),
		Rows:      len(ts.x),
		Accuracy:  hist.Accuracy,
		Model:     raw,
	}
	blob, err := json.Marshal(art)
	if err != nil {
		return nil, fmt.Errorf("encode artifact %s: %w", key, err)
	}
	if err := s.store.Save(ctx, key, blob); err != nil {
		return nil, fmt.Errorf("save artifact %s: %w", key, err)
	}
	s.log.Info("model trained",
		logger.String("key", key),
		logger.Int("rows", art.Rows),
		logger.Duration("took", time.Since(start)),
	)
	return art, nil
}

// Latest scores the most recent complete feature row of frame with the model
// stored under key, training and storing one first when none exists. Scores
// holds that single value. Failures fall back to a neutral score.
func (s *Scorer) Latest(ctx context.Context, key string, frame *models.Frame) models.ScoreResult {
	art, err := s.loadArtifact(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Info("no stored model, training", logger.String("key", key))
		art, err = s.train(ctx, key, frame)
	}
	if err != nil {
		s.log.Warn("latest score unavailable", logger.String("key", key), logger.Error(err))
		return models.NeutralScores(1, err)
	}

	model := s.newModel()
	if err := json.Unmarshal(art.Model, model); err != nil {
		return models.NeutralScores(1, fmt.Errorf("decode model %s: %v: %w", key, err, ErrModelUnavailable))
	}
	feat, err := PrepareFeatures(frame, s.opts.Lookback)
	if err != nil {
		return models.NeutralScores(1, err)
	}
	x, err := Matrix(feat.Tail(1), art.Features)
	if err != nil {
		return models.NeutralScores(1, err)
	}
	probs, err := model.PredictProba(x)
	if err != nil {
		return models.NeutralScores(1, err)
	}
	return models.ScoreResult{
		Scores:   []float64{ExpectedScore(probs[0])},
		Status:   models.ScoreComputed,
		Accuracy: art.Accuracy,
	}
}

func (s *Scorer) loadArtifact(ctx context.Context, key string) (*Artifact, error) {
	if s.store == nil {
		return nil, fmt.Errorf("load %s: no model store: %w", key, ErrModelUnavailable)
	}
	blob, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	var art Artifact
	if err := json.Unmarshal(blob, &art); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %v: %w", key, err, ErrModelUnavailable)
	}
	if art.Version != artifactVersion {
		return nil, fmt.Errorf("artifact %s version %d: %w", key, art.Version, ErrModelUnavailable)
	}
	return &art, nil
}

func rowsOf(x [][]float64, from, to int) [][]float64 { return x[from:to] }

var _ domsvc.Scorer = (*Scorer)(nil)
