package repository

import (
	"database/sql"
	"fmt"

	"github.com/TIRP-Group3/design1/internal/models"

	"github.com/jmoiron/sqlx"
)

// LedgerRepository persists the append-only record of training
// sessions, scan sessions and predictions, plus the active-model
// pointer.
type LedgerRepository interface {
	// OpenScanSession persists an empty session before any scoring
	// starts, so mid-batch failures still leave a queryable session.
	OpenScanSession(userID int64) (int64, error)
	// RecordPrediction appends one prediction. Not idempotent: a
	// retried call duplicates the row, callers record each scored row
	// at most once.
	RecordPrediction(p *models.Prediction) error
	// RecordTrainingSession appends the session row and repoints the
	// active model at it in a single transaction. Called only after
	// the artifact is durably published.
	RecordTrainingSession(s *models.TrainingSession) error
	// SetActiveModel repoints the active model at any recorded
	// training session (promotion or rollback).
	SetActiveModel(trainingSessionID int64) error
	// GetActiveTrainingSession resolves the active-model pointer.
	// Returns sql.ErrNoRows if no training has ever succeeded.
	GetActiveTrainingSession() (*models.TrainingSession, error)

	ListTrainingSessions(userID int64, admin bool) ([]*models.TrainingSession, error)
	ListPredictions(userID int64, admin bool) ([]*models.Prediction, error)
	ListScanSessions(userID int64) ([]*models.ScanSession, error)
	GetScanSession(sessionID, userID int64, admin bool) (*models.ScanSession, error)
	GetSessionPredictions(sessionID int64) ([]*models.Prediction, error)
}

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) OpenScanSession(userID int64) (int64, error) {
	var id int64
	query := `INSERT INTO scan_sessions (user_id) VALUES ($1) RETURNING id`
	if err := r.db.QueryRowx(query, userID).Scan(&id); err != nil {
		return 0, fmt.Errorf("open scan session: %w", err)
	}
	return id, nil
}

func (r *ledgerRepository) RecordPrediction(p *models.Prediction) error {
	query := `
		INSERT INTO predictions (filename, prediction, probabilities, user_id, session_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, scanned_at
	`
	return r.db.QueryRowx(query, p.Filename, p.Prediction, p.Probabilities, p.UserID, p.SessionID).
		Scan(&p.ID, &p.ScannedAt)
}

func (r *ledgerRepository) RecordTrainingSession(s *models.TrainingSession) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin training session tx: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO training_sessions (filename, model_path, accuracy, uploaded_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at
	`
	if err := tx.QueryRowx(query, s.Filename, s.ModelPath, s.Accuracy, s.UploadedBy).
		Scan(&s.ID, &s.UploadedAt); err != nil {
		return fmt.Errorf("insert training session: %w", err)
	}

	if err := setActiveModelTx(tx, s.ID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ledgerRepository) SetActiveModel(trainingSessionID int64) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin active model tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.Get(&exists, `SELECT EXISTS (SELECT 1 FROM training_sessions WHERE id = $1)`, trainingSessionID); err != nil {
		return fmt.Errorf("check training session: %w", err)
	}
	if !exists {
		return sql.ErrNoRows
	}

	if err := setActiveModelTx(tx, trainingSessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func setActiveModelTx(tx *sqlx.Tx, trainingSessionID int64) error {
	query := `
		INSERT INTO active_model (id, training_session_id) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET training_session_id = EXCLUDED.training_session_id
	`
	if _, err := tx.Exec(query, trainingSessionID); err != nil {
		return fmt.Errorf("update active model pointer: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetActiveTrainingSession() (*models.TrainingSession, error) {
	var session models.TrainingSession
	query := `
		SELECT t.id, t.filename, t.model_path, t.accuracy, t.uploaded_by, t.uploaded_at
		FROM active_model a
		JOIN training_sessions t ON t.id = a.training_session_id
		WHERE a.id = 1
	`
	if err := r.db.Get(&session, query); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *ledgerRepository) ListTrainingSessions(userID int64, admin bool) ([]*models.TrainingSession, error) {
	var sessions []*models.TrainingSession
	if admin {
		query := `
			SELECT id, filename, model_path, accuracy, uploaded_by, uploaded_at
			FROM training_sessions
			ORDER BY uploaded_at DESC, id DESC
		`
		if err := r.db.Select(&sessions, query); err != nil {
			return nil, err
		}
		return sessions, nil
	}
	query := `
		SELECT id, filename, model_path, accuracy, uploaded_by, uploaded_at
		FROM training_sessions
		WHERE uploaded_by = $1
		ORDER BY uploaded_at DESC, id DESC
	`
	if err := r.db.Select(&sessions, query, userID); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *ledgerRepository) ListPredictions(userID int64, admin bool) ([]*models.Prediction, error) {
	var records []*models.Prediction
	if admin {
		query := `
			SELECT id, filename, prediction, probabilities, user_id, session_id, scanned_at
			FROM predictions
			ORDER BY scanned_at DESC, id DESC
		`
		if err := r.db.Select(&records, query); err != nil {
			return nil, err
		}
		return records, nil
	}
	query := `
		SELECT id, filename, prediction, probabilities, user_id, session_id, scanned_at
		FROM predictions
		WHERE user_id = $1
		ORDER BY scanned_at DESC, id DESC
	`
	if err := r.db.Select(&records, query, userID); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *ledgerRepository) ListScanSessions(userID int64) ([]*models.ScanSession, error) {
	var sessions []*models.ScanSession
	query := `
		SELECT id, user_id, scanned_at
		FROM scan_sessions
		WHERE user_id = $1
		ORDER BY scanned_at DESC, id DESC
	`
	if err := r.db.Select(&sessions, query, userID); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *ledgerRepository) GetScanSession(sessionID, userID int64, admin bool) (*models.ScanSession, error) {
	var session models.ScanSession
	if admin {
		query := `SELECT id, user_id, scanned_at FROM scan_sessions WHERE id = $1`
		if err := r.db.Get(&session, query, sessionID); err != nil {
			return nil, err
		}
		return &session, nil
	}
	// Ownership isolation: non-owners get the same not-found outcome
	// as a session that does not exist.
	query := `SELECT id, user_id, scanned_at FROM scan_sessions WHERE id = $1 AND user_id = $2`
	if err := r.db.Get(&session, query, sessionID, userID); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *ledgerRepository) GetSessionPredictions(sessionID int64) ([]*models.Prediction, error) {
	var records []*models.Prediction
	query := `
		SELECT id, filename, prediction, probabilities, user_id, session_id, scanned_at
		FROM predictions
		WHERE session_id = $1
		ORDER BY id ASC
	`
	if err := r.db.Select(&records, query, sessionID); err != nil {
		return nil, err
	}
	return records, nil
}
