package service

import (
	"fmt"
	"math/rand"

	"github.com/TIRP-Group3/design1/internal/artifact"
	"github.com/TIRP-Group3/design1/internal/dataset"
	"github.com/TIRP-Group3/design1/internal/ml"
	"github.com/TIRP-Group3/design1/internal/models"
	"github.com/TIRP-Group3/design1/internal/repository"

	"go.uber.org/zap"
)

// splitSeed fixes the train/held-out partition so retraining on the
// same dataset reproduces the same accuracy.
const splitSeed = 42

// testRatio is the held-out share of rows used to measure accuracy.
const testRatio = 0.2

// TrainingPipeline fits encoders and a soft-voting ensemble over a
// labeled dataset, publishes the artifact pair atomically, and records
// the run in the ledger.
type TrainingPipeline struct {
	ledger repository.LedgerRepository
	store  artifact.Store
	logger *zap.Logger
}

func NewTrainingPipeline(ledger repository.LedgerRepository, store artifact.Store, logger *zap.Logger) *TrainingPipeline {
	return &TrainingPipeline{ledger: ledger, store: store, logger: logger}
}

// TrainResult describes one successful training run.
type TrainResult struct {
	SessionID int64
	ModelKey  string
	// Accuracy is the held-out exact-match rate as a percentage.
	Accuracy float64
}

// Train runs the full pipeline. On any failure no artifact and no
// ledger row is produced.
func (p *TrainingPipeline) Train(ds *dataset.Dataset, filename string, userID int64) (*TrainResult, error) {
	if !ds.HasColumn(dataset.LabelColumn) {
		return nil, ErrSchema
	}

	cleaned := ds.DropColumns(dataset.UnstableColumns...).FillMissing(dataset.MissingSentinel)

	encoders, err := ml.FitEncoders(cleaned, dataset.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}
	if encoders.NumClasses() < 2 {
		return nil, fmt.Errorf("%w: dataset has a single target class", ErrTraining)
	}

	features, err := encoders.Transform(cleaned.DropColumns(dataset.LabelColumn))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}
	rawLabels, err := cleaned.Column(dataset.LabelColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}
	labels, err := encoders.EncodeLabels(rawLabels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}

	trainX, trainY, testX, testY, err := splitDataset(features, labels, testRatio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}

	model := ml.NewDefaultEnsemble(splitSeed)
	if err := model.Fit(trainX, trainY, encoders.NumClasses()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}

	accuracy, err := evaluate(model, testX, testY)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTraining, err)
	}

	modelBlob, err := ml.MarshalModel(model)
	if err != nil {
		return nil, fmt.Errorf("serialize model: %w", err)
	}
	encoderBlob, err := encoders.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize encoders: %w", err)
	}

	// Durable artifact first; the ledger must never point at a blob
	// that is not yet on storage.
	version := artifact.NewVersion()
	modelKey, err := p.store.Publish(version, modelBlob, encoderBlob)
	if err != nil {
		return nil, fmt.Errorf("publish artifact: %w", err)
	}

	session := &models.TrainingSession{
		Filename:   filename,
		ModelPath:  modelKey,
		Accuracy:   accuracy,
		UploadedBy: userID,
	}
	if err := p.ledger.RecordTrainingSession(session); err != nil {
		return nil, fmt.Errorf("record training session: %w", err)
	}

	p.logger.Info("Model trained",
		zap.String("model_key", modelKey),
		zap.Float64("accuracy", accuracy),
		zap.Int("rows", ds.Len()),
		zap.Int64("session_id", session.ID))

	return &TrainResult{SessionID: session.ID, ModelKey: modelKey, Accuracy: accuracy}, nil
}

func splitDataset(features [][]float64, labels []int, ratio float64) (trainX [][]float64, trainY []int, testX [][]float64, testY []int, err error) {
	n := len(features)
	if n < 5 {
		return nil, nil, nil, nil, fmt.Errorf("need at least 5 rows, got %d", n)
	}

	rnd := rand.New(rand.NewSource(splitSeed))
	indices := rnd.Perm(n)

	testCount := int(float64(n) * ratio)
	if testCount < 1 {
		testCount = 1
	}
	split := n - testCount
	for i, idx := range indices {
		if i < split {
			trainX = append(trainX, features[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testX = append(testX, features[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainX, trainY, testX, testY, nil
}

func evaluate(model ml.Classifier, testX [][]float64, testY []int) (float64, error) {
	if len(testX) == 0 {
		return 0, fmt.Errorf("held-out partition is empty")
	}
	correct := 0
	for i, x := range testX {
		dist, err := model.PredictProba(x)
		if err != nil {
			return 0, err
		}
		if ml.Argmax(dist) == testY[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testX)) * 100, nil
}
