package service

import (
	"database/sql"
	"time"

	"github.com/TIRP-Group3/design1/internal/models"
)

// fakeLedger is an in-memory LedgerRepository for pipeline tests.
type fakeLedger struct {
	trainingSessions []*models.TrainingSession
	scanSessions     []*models.ScanSession
	predictions      []*models.Prediction
	activeID         int64
	nextID           int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{}
}

func (l *fakeLedger) id() int64 {
	l.nextID++
	return l.nextID
}

func (l *fakeLedger) OpenScanSession(userID int64) (int64, error) {
	session := &models.ScanSession{ID: l.id(), UserID: userID, ScannedAt: time.Now()}
	l.scanSessions = append(l.scanSessions, session)
	return session.ID, nil
}

func (l *fakeLedger) RecordPrediction(p *models.Prediction) error {
	p.ID = l.id()
	p.ScannedAt = time.Now()
	stored := *p
	l.predictions = append(l.predictions, &stored)
	return nil
}

func (l *fakeLedger) RecordTrainingSession(s *models.TrainingSession) error {
	s.ID = l.id()
	s.UploadedAt = time.Now()
	stored := *s
	l.trainingSessions = append(l.trainingSessions, &stored)
	l.activeID = s.ID
	return nil
}

func (l *fakeLedger) SetActiveModel(trainingSessionID int64) error {
	for _, s := range l.trainingSessions {
		if s.ID == trainingSessionID {
			l.activeID = trainingSessionID
			return nil
		}
	}
	return sql.ErrNoRows
}

func (l *fakeLedger) GetActiveTrainingSession() (*models.TrainingSession, error) {
	for _, s := range l.trainingSessions {
		if s.ID == l.activeID {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (l *fakeLedger) ListTrainingSessions(userID int64, admin bool) ([]*models.TrainingSession, error) {
	var out []*models.TrainingSession
	for i := len(l.trainingSessions) - 1; i >= 0; i-- {
		s := l.trainingSessions[i]
		if admin || s.UploadedBy == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *fakeLedger) ListPredictions(userID int64, admin bool) ([]*models.Prediction, error) {
	var out []*models.Prediction
	for i := len(l.predictions) - 1; i >= 0; i-- {
		p := l.predictions[i]
		if admin || p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (l *fakeLedger) ListScanSessions(userID int64) ([]*models.ScanSession, error) {
	var out []*models.ScanSession
	for i := len(l.scanSessions) - 1; i >= 0; i-- {
		s := l.scanSessions[i]
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (l *fakeLedger) GetScanSession(sessionID, userID int64, admin bool) (*models.ScanSession, error) {
	for _, s := range l.scanSessions {
		if s.ID == sessionID && (admin || s.UserID == userID) {
			return s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (l *fakeLedger) GetSessionPredictions(sessionID int64) ([]*models.Prediction, error) {
	var out []*models.Prediction
	for _, p := range l.predictions {
		if p.SessionID == sessionID {
			out = append(out, p)
		}
	}
	return out, nil
}
