package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TIRP-Group3/design1/internal/artifact"
	"github.com/TIRP-Group3/design1/internal/dataset"
	"github.com/TIRP-Group3/design1/internal/ml"
	"github.com/TIRP-Group3/design1/internal/models"
	"github.com/TIRP-Group3/design1/internal/repository"

	"go.uber.org/zap"
)

// BatchItem is one uploaded file entering an inference batch. A
// non-nil Err marks an upstream read/parse failure; the item is
// reported as error entries without aborting the batch.
type BatchItem struct {
	Filename string
	Data     *dataset.Dataset
	Err      error
}

// RowResult is one successfully scored row.
type RowResult struct {
	Index         int                `json:"index"`
	Filename      string             `json:"filename"`
	Prediction    string             `json:"prediction"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// RowError is one isolated per-row failure, reported alongside the
// successes in the same response.
type RowError struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Detail   string `json:"error"`
}

// ScanReport aggregates one inference request: the session every
// successful row was recorded under, plus results and errors in input
// order.
type ScanReport struct {
	SessionID int64       `json:"session_id"`
	Results   []RowResult `json:"results"`
	Errors    []RowError  `json:"errors"`
}

// InferencePipeline scores uploaded datasets against the active model
// artifact and records every success in the ledger.
type InferencePipeline struct {
	ledger repository.LedgerRepository
	store  artifact.Store
	logger *zap.Logger
}

func NewInferencePipeline(ledger repository.LedgerRepository, store artifact.Store, logger *zap.Logger) *InferencePipeline {
	return &InferencePipeline{ledger: ledger, store: store, logger: logger}
}

// Predict resolves the active model, opens one scan session, and
// scores the batch. Precondition failures (no model, artifact load)
// abort before the session is opened; per-row failures never do.
func (p *InferencePipeline) Predict(items []BatchItem, userID int64) (*ScanReport, error) {
	active, err := p.ledger.GetActiveTrainingSession()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoModel
		}
		return nil, fmt.Errorf("resolve active model: %w", err)
	}

	model, encoders, err := p.loadArtifact(active.ModelPath)
	if err != nil {
		return nil, err
	}

	sessionID, err := p.ledger.OpenScanSession(userID)
	if err != nil {
		return nil, fmt.Errorf("open scan session: %w", err)
	}

	report := &ScanReport{SessionID: sessionID, Results: []RowResult{}, Errors: []RowError{}}
	index := 0
	for _, item := range items {
		if item.Err != nil {
			report.Errors = append(report.Errors, RowError{Index: index, Filename: item.Filename, Detail: item.Err.Error()})
			index++
			continue
		}
		cleaned := item.Data.DropColumns(dataset.UnstableColumns...).
			DropColumns(dataset.LabelColumn).
			FillMissing(dataset.MissingSentinel)
		for row := 0; row < cleaned.Len(); row++ {
			p.scoreRow(report, model, encoders, cleaned.Row(row), item.Filename, index, userID, sessionID)
			index++
		}
	}

	p.logger.Info("Scan completed",
		zap.Int64("session_id", sessionID),
		zap.Int("scored", len(report.Results)),
		zap.Int("failed", len(report.Errors)))

	return report, nil
}

func (p *InferencePipeline) scoreRow(report *ScanReport, model ml.Classifier, encoders *ml.EncoderSet, row map[string]string, filename string, index int, userID, sessionID int64) {
	vec, err := encoders.TransformRow(row)
	if err != nil {
		report.Errors = append(report.Errors, RowError{Index: index, Filename: filename, Detail: fmt.Sprintf("encoding failed: %v", err)})
		return
	}

	dist, err := model.PredictProba(vec)
	if err != nil {
		report.Errors = append(report.Errors, RowError{Index: index, Filename: filename, Detail: fmt.Sprintf("prediction failed: %v", err)})
		return
	}

	label, err := encoders.Target.Decode(ml.Argmax(dist))
	if err != nil {
		report.Errors = append(report.Errors, RowError{Index: index, Filename: filename, Detail: fmt.Sprintf("label decode failed: %v", err)})
		return
	}

	probabilities := make(map[string]float64, len(dist))
	for i, prob := range dist {
		class, err := encoders.Target.Decode(i)
		if err != nil {
			report.Errors = append(report.Errors, RowError{Index: index, Filename: filename, Detail: fmt.Sprintf("label decode failed: %v", err)})
			return
		}
		probabilities[class] = prob
	}

	serialized, err := json.Marshal(probabilities)
	if err != nil {
		report.Errors = append(report.Errors, RowError{Index: index, Filename: filename, Detail: fmt.Sprintf("serialize probabilities: %v", err)})
		return
	}

	record := &models.Prediction{
		Filename:      filename,
		Prediction:    label,
		Probabilities: string(serialized),
		UserID:        userID,
		SessionID:     sessionID,
	}
	if err := p.ledger.RecordPrediction(record); err != nil {
		report.Errors = append(report.Errors, RowError{Index: index, Filename: filename, Detail: fmt.Sprintf("record prediction: %v", err)})
		return
	}

	report.Results = append(report.Results, RowResult{
		Index:         index,
		Filename:      filename,
		Prediction:    label,
		Probabilities: probabilities,
	})
}

func (p *InferencePipeline) loadArtifact(modelKey string) (ml.Classifier, *ml.EncoderSet, error) {
	modelBlob, encoderBlob, err := p.store.Load(modelKey)
	if err != nil {
		return nil, nil, err
	}
	model, err := ml.UnmarshalModel(modelBlob)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", artifact.ErrArtifactLoad, err)
	}
	encoders, err := ml.UnmarshalEncoderSet(encoderBlob)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", artifact.ErrArtifactLoad, err)
	}
	return model, encoders, nil
}
