package models

import "time"

// TrainingSession is one append-only row per successful training run.
// ModelPath is the artifact store key of the classifier blob; the
// encoder blob key is derived from it.
type TrainingSession struct {
	ID         int64     `db:"id" json:"id"`
	Filename   string    `db:"filename" json:"filename"`
	ModelPath  string    `db:"model_path" json:"model_path"`
	Accuracy   float64   `db:"accuracy" json:"accuracy"`
	UploadedBy int64     `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// ScanSession groups all predictions produced by one inference
// request. It is persisted empty before scoring starts.
type ScanSession struct {
	ID        int64     `db:"id" json:"session_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ScannedAt time.Time `db:"scanned_at" json:"scanned_at"`
}

// Prediction is one successfully scored row. Probabilities holds the
// class -> probability map serialized as JSON text.
type Prediction struct {
	ID            int64     `db:"id" json:"id"`
	Filename      string    `db:"filename" json:"filename"`
	Prediction    string    `db:"prediction" json:"prediction"`
	Probabilities string    `db:"probabilities" json:"probabilities"`
	UserID        int64     `db:"user_id" json:"user_id"`
	SessionID     int64     `db:"session_id" json:"session_id"`
	ScannedAt     time.Time `db:"scanned_at" json:"scanned_at"`
}

// ActiveModel is the single-row pointer at the currently active
// training session. Promotion and rollback both go through it; nothing
// infers the active model from timestamps.
type ActiveModel struct {
	ID                int64 `db:"id" json:"id"`
	TrainingSessionID int64 `db:"training_session_id" json:"training_session_id"`
}
