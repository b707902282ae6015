package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/TIRP-Group3/design1/internal/artifact"
	"github.com/TIRP-Group3/design1/internal/dataset"
	"github.com/TIRP-Group3/design1/internal/models"
	"github.com/TIRP-Group3/design1/internal/repository"
	"github.com/TIRP-Group3/design1/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DatasetHandler serves the training, inference and ledger endpoints.
type DatasetHandler struct {
	training      *service.TrainingPipeline
	inference     *service.InferencePipeline
	ledger        repository.LedgerRepository
	authRepo      repository.AuthRepository
	guestUsername string
	logger        *zap.Logger
}

func NewDatasetHandler(
	training *service.TrainingPipeline,
	inference *service.InferencePipeline,
	ledger repository.LedgerRepository,
	authRepo repository.AuthRepository,
	guestUsername string,
	logger *zap.Logger,
) *DatasetHandler {
	return &DatasetHandler{
		training:      training,
		inference:     inference,
		ledger:        ledger,
		authRepo:      authRepo,
		guestUsername: guestUsername,
		logger:        logger,
	}
}

// Upload handles POST /datasets/upload: train a new model from an
// uploaded labeled CSV.
func (h *DatasetHandler) Upload(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing uploaded file"})
		return
	}

	ds, err := readCSVUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.training.Train(ds, fileHeader.Filename, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSchema):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrTraining):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Training failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to train model"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Model trained successfully",
		"accuracy":   result.Accuracy,
		"session_id": result.SessionID,
	})
}

// PredictFile handles POST /datasets/predict-file: score uploaded CSV
// file(s) against the active model.
func (h *DatasetHandler) PredictFile(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	h.predict(c, user, false)
}

// PredictFilePublic handles POST /datasets/predict-file-public:
// unauthenticated scans attributed to the guest identity. CSV only.
func (h *DatasetHandler) PredictFilePublic(c *gin.Context) {
	guest, err := h.authRepo.GetUserByUsername(h.guestUsername)
	if err != nil {
		h.logger.Error("Guest user missing", zap.String("username", h.guestUsername), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Guest identity not configured"})
		return
	}
	h.predict(c, guest, true)
}

func (h *DatasetHandler) predict(c *gin.Context, user *models.User, csvOnly bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		if single := form.File["file"]; len(single) > 0 {
			fileHeaders = single
		}
	}
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No files uploaded"})
		return
	}

	items := make([]service.BatchItem, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		if csvOnly && !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
			items = append(items, service.BatchItem{Filename: fh.Filename, Err: errors.New("only CSV files are accepted")})
			continue
		}
		ds, err := readCSVUpload(fh)
		items = append(items, service.BatchItem{Filename: fh.Filename, Data: ds, Err: err})
	}

	report, err := h.inference.Predict(items, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoModel):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, artifact.ErrArtifactLoad):
			h.logger.Error("Artifact load failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Stored model artifact is unavailable"})
		default:
			h.logger.Error("Prediction failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Prediction failed"})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// PredictionHistory handles GET /datasets/prediction-history. Admins
// see every record, everyone else only their own.
func (h *DatasetHandler) PredictionHistory(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	records, err := h.ledger.ListPredictions(user.ID, user.IsAdmin())
	if err != nil {
		h.logger.Error("Failed to list predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch prediction history"})
		return
	}

	usernames := map[int64]string{user.ID: user.Username}
	results := make([]gin.H, 0, len(records))
	for _, r := range records {
		results = append(results, gin.H{
			"id":            r.ID,
			"filename":      r.Filename,
			"prediction":    r.Prediction,
			"scanned_at":    r.ScannedAt,
			"user_id":       r.UserID,
			"username":      h.username(usernames, r.UserID),
			"session_id":    r.SessionID,
			"probabilities": parseProbabilities(r.Probabilities),
		})
	}
	c.JSON(http.StatusOK, results)
}

// PredictionSessions handles GET /datasets/prediction-sessions: the
// caller's scan sessions with their grouped predictions, newest first.
func (h *DatasetHandler) PredictionSessions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	sessions, err := h.ledger.ListScanSessions(user.ID)
	if err != nil {
		h.logger.Error("Failed to list scan sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scan sessions"})
		return
	}

	data := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		predictions, err := h.ledger.GetSessionPredictions(s.ID)
		if err != nil {
			h.logger.Error("Failed to fetch session predictions", zap.Int64("session_id", s.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scan sessions"})
			return
		}
		data = append(data, gin.H{
			"session_id": s.ID,
			"scanned_at": s.ScannedAt,
			"file_count": len(predictions),
			"files":      predictionEntries(predictions),
		})
	}
	c.JSON(http.StatusOK, data)
}

// ScanSession handles GET /datasets/scan-session/:id. A non-owner,
// non-admin caller gets not-found even when the session exists.
func (h *DatasetHandler) ScanSession(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	session, err := h.ledger.GetScanSession(sessionID, user.ID, user.IsAdmin())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Scan session not found"})
			return
		}
		h.logger.Error("Failed to fetch scan session", zap.Int64("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scan session"})
		return
	}

	h.renderScanSession(c, session)
}

// ScanSessionPublic handles GET /datasets/scan-session-public/:id.
// Only guest-owned sessions are visible without authentication.
func (h *DatasetHandler) ScanSessionPublic(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	guest, err := h.authRepo.GetUserByUsername(h.guestUsername)
	if err != nil {
		h.logger.Error("Guest user missing", zap.String("username", h.guestUsername), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Guest identity not configured"})
		return
	}

	session, err := h.ledger.GetScanSession(sessionID, guest.ID, false)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Scan session not found"})
			return
		}
		h.logger.Error("Failed to fetch public scan session", zap.Int64("session_id", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scan session"})
		return
	}

	h.renderScanSession(c, session)
}

// TrainingSessions handles GET /datasets/training-sessions.
func (h *DatasetHandler) TrainingSessions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	sessions, err := h.ledger.ListTrainingSessions(user.ID, user.IsAdmin())
	if err != nil {
		h.logger.Error("Failed to list training sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch training sessions"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

type activeModelRequest struct {
	SessionID int64 `json:"session_id" binding:"required"`
}

// SetActiveModel handles POST /datasets/active-model: point the active
// model at any recorded training session. Promotion and rollback are
// the same auditable operation.
func (h *DatasetHandler) SetActiveModel(c *gin.Context) {
	var req activeModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ledger.SetActiveModel(req.SessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Training session not found"})
			return
		}
		h.logger.Error("Failed to set active model", zap.Int64("session_id", req.SessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to set active model"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Active model updated",
		"session_id": req.SessionID,
	})
}

func (h *DatasetHandler) renderScanSession(c *gin.Context, session *models.ScanSession) {
	predictions, err := h.ledger.GetSessionPredictions(session.ID)
	if err != nil {
		h.logger.Error("Failed to fetch session predictions", zap.Int64("session_id", session.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch scan session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"user_id":    session.UserID,
		"scanned_at": session.ScannedAt,
		"files":      predictionEntries(predictions),
	})
}

func (h *DatasetHandler) currentUser(c *gin.Context) (*models.User, bool) {
	username := c.MustGet("username").(string)
	user, err := h.authRepo.GetUserByUsername(username)
	if err != nil {
		h.logger.Error("Authenticated user missing from store", zap.String("username", username), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return nil, false
	}
	return user, true
}

func (h *DatasetHandler) username(cache map[int64]string, userID int64) string {
	if name, ok := cache[userID]; ok {
		return name
	}
	user, err := h.authRepo.GetUserByID(userID)
	if err != nil {
		cache[userID] = "Unknown"
		return "Unknown"
	}
	cache[userID] = user.Username
	return user.Username
}

func predictionEntries(predictions []*models.Prediction) []gin.H {
	files := make([]gin.H, 0, len(predictions))
	for _, p := range predictions {
		files = append(files, gin.H{
			"id":            p.ID,
			"filename":      p.Filename,
			"prediction":    p.Prediction,
			"probabilities": parseProbabilities(p.Probabilities),
			"scanned_at":    p.ScannedAt,
		})
	}
	return files
}

func parseProbabilities(serialized string) map[string]float64 {
	out := make(map[string]float64)
	if err := json.Unmarshal([]byte(serialized), &out); err != nil {
		return map[string]float64{}
	}
	return out
}

func readCSVUpload(fh *multipart.FileHeader) (*dataset.Dataset, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer file.Close()
	return dataset.ReadCSV(file)
}
