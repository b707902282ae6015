package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/TIRP-Group3/design1/internal/artifact"
	"github.com/TIRP-Group3/design1/internal/dataset"

	"go.uber.org/zap"
)

// labeledDataset builds a cleanly separable training set: packed
// high-entropy rows are trojans, everything else benign.
func labeledDataset(t *testing.T, rows int) *dataset.Dataset {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("File_Name,packer,entropy,target\n")
	for i := 0; i < rows/2; i++ {
		fmt.Fprintf(&sb, "mal%d.exe,upx,%0.2f,trojan\n", i, 7.0+float64(i%5)*0.1)
	}
	for i := 0; i < rows-rows/2; i++ {
		fmt.Fprintf(&sb, "ok%d.exe,none,%0.2f,benign\n", i, 2.0+float64(i%5)*0.1)
	}
	ds, err := dataset.ReadCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ds
}

func newTestStore(t *testing.T) artifact.Store {
	t.Helper()
	store, err := artifact.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return store
}

func TestTrainPublishesArtifactAndRecordsSession(t *testing.T) {
	ledger := newFakeLedger()
	store := newTestStore(t)
	pipeline := NewTrainingPipeline(ledger, store, zap.NewNop())

	result, err := pipeline.Train(labeledDataset(t, 20), "train.csv", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Accuracy < 0 || result.Accuracy > 100 {
		t.Fatalf("accuracy out of range: %v", result.Accuracy)
	}
	if len(ledger.trainingSessions) != 1 {
		t.Fatalf("expected 1 training session, got %d", len(ledger.trainingSessions))
	}
	session := ledger.trainingSessions[0]
	if session.ModelPath != result.ModelKey {
		t.Fatalf("ledger records %q, result says %q", session.ModelPath, result.ModelKey)
	}

	// Both artifact blobs are loadable under the recorded key.
	modelBlob, encoderBlob, err := store.Load(session.ModelPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(modelBlob) == 0 || len(encoderBlob) == 0 {
		t.Fatal("published artifact blobs are empty")
	}

	// The new session is the active model.
	active, err := ledger.GetActiveTrainingSession()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.ID != session.ID {
		t.Fatalf("active model is %d, want %d", active.ID, session.ID)
	}
}

func TestTrainSeparableDataScoresPerfectly(t *testing.T) {
	ledger := newFakeLedger()
	pipeline := NewTrainingPipeline(ledger, newTestStore(t), zap.NewNop())

	result, err := pipeline.Train(labeledDataset(t, 40), "train.csv", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Accuracy != 100 {
		t.Fatalf("expected 100%% held-out accuracy on separable data, got %v", result.Accuracy)
	}
}

func TestTrainMissingTargetLeavesNoTrace(t *testing.T) {
	ledger := newFakeLedger()
	store := newTestStore(t)
	pipeline := NewTrainingPipeline(ledger, store, zap.NewNop())

	ds, err := dataset.ReadCSV(strings.NewReader("packer,entropy\nupx,7.0\nnone,2.0\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = pipeline.Train(ds, "bad.csv", 1)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
	if len(ledger.trainingSessions) != 0 {
		t.Fatal("training session recorded despite schema error")
	}
	if _, err := ledger.GetActiveTrainingSession(); err == nil {
		t.Fatal("active model set despite schema error")
	}
}

func TestTrainSingleClassFails(t *testing.T) {
	ledger := newFakeLedger()
	pipeline := NewTrainingPipeline(ledger, newTestStore(t), zap.NewNop())

	var sb strings.Builder
	sb.WriteString("packer,entropy,target\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&sb, "upx,%d.0,trojan\n", i)
	}
	ds, err := dataset.ReadCSV(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = pipeline.Train(ds, "degenerate.csv", 1)
	if !errors.Is(err, ErrTraining) {
		t.Fatalf("expected ErrTraining, got %v", err)
	}
	if len(ledger.trainingSessions) != 0 {
		t.Fatal("training session recorded despite training failure")
	}
}

func TestTrainTooFewRowsFails(t *testing.T) {
	pipeline := NewTrainingPipeline(newFakeLedger(), newTestStore(t), zap.NewNop())
	ds, err := dataset.ReadCSV(strings.NewReader("packer,target\nupx,trojan\nnone,benign\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := pipeline.Train(ds, "tiny.csv", 1); !errors.Is(err, ErrTraining) {
		t.Fatalf("expected ErrTraining, got %v", err)
	}
}
