package handler

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TIRP-Group3/design1/internal/middleware"
	"github.com/TIRP-Group3/design1/internal/models"
	"github.com/TIRP-Group3/design1/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type fakeAuthRepo struct {
	users map[string]*models.User
}

func (r *fakeAuthRepo) CreateUser(user *models.User) error { return nil }

func (r *fakeAuthRepo) GetUserByUsername(username string) (*models.User, error) {
	if u, ok := r.users[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeAuthRepo) GetUserByID(id int64) (*models.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *fakeAuthRepo) CountUsers() (int, error) { return len(r.users), nil }

type fakeSessionLedger struct {
	sessions    map[int64]*models.ScanSession
	predictions map[int64][]*models.Prediction
}

func (l *fakeSessionLedger) OpenScanSession(userID int64) (int64, error)        { return 0, nil }
func (l *fakeSessionLedger) RecordPrediction(p *models.Prediction) error        { return nil }
func (l *fakeSessionLedger) RecordTrainingSession(s *models.TrainingSession) error { return nil }
func (l *fakeSessionLedger) SetActiveModel(trainingSessionID int64) error       { return nil }
func (l *fakeSessionLedger) GetActiveTrainingSession() (*models.TrainingSession, error) {
	return nil, sql.ErrNoRows
}
func (l *fakeSessionLedger) ListTrainingSessions(userID int64, admin bool) ([]*models.TrainingSession, error) {
	return nil, nil
}
func (l *fakeSessionLedger) ListPredictions(userID int64, admin bool) ([]*models.Prediction, error) {
	return nil, nil
}
func (l *fakeSessionLedger) ListScanSessions(userID int64) ([]*models.ScanSession, error) {
	return nil, nil
}

func (l *fakeSessionLedger) GetScanSession(sessionID, userID int64, admin bool) (*models.ScanSession, error) {
	s, ok := l.sessions[sessionID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !admin && s.UserID != userID {
		return nil, sql.ErrNoRows
	}
	return s, nil
}

func (l *fakeSessionLedger) GetSessionPredictions(sessionID int64) ([]*models.Prediction, error) {
	return l.predictions[sessionID], nil
}

func signToken(t *testing.T, username, role string) string {
	t.Helper()
	claims := &models.Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.GetJWTSecret())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return token
}

func scanSessionRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authRepo := &fakeAuthRepo{users: map[string]*models.User{
		"alice":   {ID: 1, Username: "alice", Role: models.RoleUser},
		"mallory": {ID: 2, Username: "mallory", Role: models.RoleUser},
		"root":    {ID: 3, Username: "root", Role: models.RoleAdmin},
		"guest":   {ID: 4, Username: "guest", Role: models.RoleUser},
	}}
	ledger := &fakeSessionLedger{
		sessions: map[int64]*models.ScanSession{
			10: {ID: 10, UserID: 1, ScannedAt: time.Now()},
			11: {ID: 11, UserID: 4, ScannedAt: time.Now()},
		},
		predictions: map[int64][]*models.Prediction{
			10: {{ID: 1, Filename: "a.csv", Prediction: "trojan", Probabilities: `{"trojan":0.9,"benign":0.1}`, UserID: 1, SessionID: 10}},
		},
	}

	h := NewDatasetHandler(nil, nil, ledger, authRepo, "guest", zap.NewNop())
	router := gin.New()
	auth := router.Group("/")
	auth.Use(middleware.AuthMiddleware(zap.NewNop()))
	auth.GET("/datasets/scan-session/:id", h.ScanSession)
	router.GET("/datasets/scan-session-public/:id", h.ScanSessionPublic)
	return router
}

func getWithToken(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestScanSessionOwnerSeesIt(t *testing.T) {
	router := scanSessionRouter(t)
	rr := getWithToken(router, "/datasets/scan-session/10", signToken(t, "alice", models.RoleUser))
	if rr.Code != http.StatusOK {
		t.Fatalf("owner got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestScanSessionNonOwnerGetsNotFound(t *testing.T) {
	router := scanSessionRouter(t)
	rr := getWithToken(router, "/datasets/scan-session/10", signToken(t, "mallory", models.RoleUser))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("non-owner got %d, want 404", rr.Code)
	}
}

func TestScanSessionAdminSeesAll(t *testing.T) {
	router := scanSessionRouter(t)
	rr := getWithToken(router, "/datasets/scan-session/10", signToken(t, "root", models.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("admin got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestScanSessionRequiresToken(t *testing.T) {
	router := scanSessionRouter(t)
	rr := getWithToken(router, "/datasets/scan-session/10", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token got %d, want 401", rr.Code)
	}
}

func TestScanSessionPublicOnlyGuestSessions(t *testing.T) {
	router := scanSessionRouter(t)

	rr := getWithToken(router, "/datasets/scan-session-public/11", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("guest session got %d: %s", rr.Code, rr.Body.String())
	}

	// A non-guest session is invisible on the public route.
	rr = getWithToken(router, "/datasets/scan-session-public/10", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("private session got %d on public route, want 404", rr.Code)
	}
}
