package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/TIRP-Group3/design1/internal/artifact"
	"github.com/TIRP-Group3/design1/internal/dataset"

	"go.uber.org/zap"
)

func csvDataset(t *testing.T, content string) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.ReadCSV(strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ds
}

func trainedPipelines(t *testing.T) (*fakeLedger, *TrainingPipeline, *InferencePipeline) {
	t.Helper()
	ledger := newFakeLedger()
	store := newTestStore(t)
	training := NewTrainingPipeline(ledger, store, zap.NewNop())
	inference := NewInferencePipeline(ledger, store, zap.NewNop())
	if _, err := training.Train(labeledDataset(t, 40), "train.csv", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ledger, training, inference
}

func TestPredictNoModel(t *testing.T) {
	ledger := newFakeLedger()
	inference := NewInferencePipeline(ledger, newTestStore(t), zap.NewNop())

	_, err := inference.Predict([]BatchItem{{Filename: "a.csv"}}, 1)
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}
	if len(ledger.scanSessions) != 0 {
		t.Fatal("scan session opened despite missing model")
	}
}

func TestPredictBatch(t *testing.T) {
	ledger, _, inference := trainedPipelines(t)

	ds := csvDataset(t, "packer,entropy\nupx,7.1\nnone,2.2\n")
	report, err := inference.Predict([]BatchItem{{Filename: "scan.csv", Data: ds}}, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if report.Results[0].Prediction != "trojan" || report.Results[1].Prediction != "benign" {
		t.Fatalf("unexpected predictions: %+v", report.Results)
	}

	// Full distribution over every class known at training time.
	for _, r := range report.Results {
		if len(r.Probabilities) != 2 {
			t.Fatalf("expected 2 classes in distribution, got %v", r.Probabilities)
		}
		sum := 0.0
		for _, p := range r.Probabilities {
			if p < 0 {
				t.Fatalf("negative probability: %v", r.Probabilities)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-6 {
			t.Fatalf("probabilities sum to %v", sum)
		}
	}

	// One prediction record per successful row, all on one session.
	records, err := ledger.GetSessionPredictions(report.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 prediction records, got %d", len(records))
	}
	for _, r := range records {
		if r.UserID != 7 {
			t.Fatalf("record attributed to user %d, want 7", r.UserID)
		}
	}
}

func TestPredictPartialBatchIsolation(t *testing.T) {
	ledger, _, inference := trainedPipelines(t)

	good := csvDataset(t, "packer,entropy\nupx,7.1\nnone,2.2\n")
	// Second row has a non-numeric entropy value and cannot be encoded.
	partlyBad := csvDataset(t, "packer,entropy\nupx,6.9\nupx,garbage\n")

	items := []BatchItem{
		{Filename: "good.csv", Data: good},
		{Filename: "broken.bin", Err: errors.New("unrecoverable decode error")},
		{Filename: "mixed.csv", Data: partlyBad},
	}
	report, err := inference.Predict(items, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("expected 3 successes, got %d: %+v", len(report.Results), report.Results)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("expected 2 error entries, got %d: %+v", len(report.Errors), report.Errors)
	}

	// Input order is preserved across successes and failures.
	if report.Errors[0].Filename != "broken.bin" || report.Errors[0].Index != 2 {
		t.Fatalf("unexpected first error entry: %+v", report.Errors[0])
	}
	if report.Errors[1].Filename != "mixed.csv" || report.Errors[1].Index != 4 {
		t.Fatalf("unexpected second error entry: %+v", report.Errors[1])
	}

	// The session holds exactly the successful rows.
	records, err := ledger.GetSessionPredictions(report.SessionID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 prediction records, got %d", len(records))
	}
}

func TestPredictUnseenCategoryStillScores(t *testing.T) {
	_, _, inference := trainedPipelines(t)

	// themida never appeared during training; the encoder's unknown
	// sentinel keeps the row scoreable.
	ds := csvDataset(t, "packer,entropy\nthemida,7.0\n")
	report, err := inference.Predict([]BatchItem{{Filename: "scan.csv", Data: ds}}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Results) != 1 || len(report.Errors) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestActiveModelResolution(t *testing.T) {
	ledger := newFakeLedger()
	store := newTestStore(t)
	training := NewTrainingPipeline(ledger, store, zap.NewNop())
	inference := NewInferencePipeline(ledger, store, zap.NewNop())

	buildRun := func(lowLabel, highLabel string) *dataset.Dataset {
		var sb strings.Builder
		sb.WriteString("x,target\n")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(&sb, "0.%d,%s\n", i, lowLabel)
			fmt.Fprintf(&sb, "9.%d,%s\n", i, highLabel)
		}
		return csvDataset(t, sb.String())
	}

	t1, err := training.Train(buildRun("low", "high"), "t1.csv", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// T2 inverts the labeling; an unpinned inference must follow T2.
	t2, err := training.Train(buildRun("high", "low"), "t2.csv", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probe := csvDataset(t, "x\n0.1\n")
	report, err := inference.Predict([]BatchItem{{Filename: "probe.csv", Data: probe}}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected 1 result, got %+v", report)
	}
	if report.Results[0].Prediction != "high" {
		t.Fatalf("inference used the wrong model: got %q", report.Results[0].Prediction)
	}

	// Rolling the pointer back to T1 flips the answer.
	if err := ledger.SetActiveModel(t1.SessionID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report, err = inference.Predict([]BatchItem{{Filename: "probe.csv", Data: probe}}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Results[0].Prediction != "low" {
		t.Fatalf("rollback not honored: got %q", report.Results[0].Prediction)
	}
	_ = t2
}

func TestPredictCorruptArtifact(t *testing.T) {
	ledger := newFakeLedger()
	store := newTestStore(t)
	training := NewTrainingPipeline(ledger, store, zap.NewNop())
	inference := NewInferencePipeline(ledger, store, zap.NewNop())

	if _, err := training.Train(labeledDataset(t, 20), "train.csv", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Point the ledger at a key whose blobs were never published.
	ledger.trainingSessions[0].ModelPath = "model_deadbeef.json"

	before := len(ledger.scanSessions)
	_, err := inference.Predict([]BatchItem{{Filename: "a.csv"}}, 1)
	if !errors.Is(err, artifact.ErrArtifactLoad) {
		t.Fatalf("expected ErrArtifactLoad, got %v", err)
	}
	if len(ledger.scanSessions) != before {
		t.Fatal("scan session opened despite artifact load failure")
	}
}
