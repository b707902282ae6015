package handler

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/TIRP-Group3/design1/internal/models"
	"github.com/TIRP-Group3/design1/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler interface {
	GetDashboard(c *gin.Context)
}

type dashboardHandler struct {
	ledger   repository.LedgerRepository
	authRepo repository.AuthRepository
	logger   *zap.Logger
}

func NewDashboardHandler(ledger repository.LedgerRepository, authRepo repository.AuthRepository, logger *zap.Logger) DashboardHandler {
	return &dashboardHandler{ledger: ledger, authRepo: authRepo, logger: logger}
}

// benignLabels are predictions not counted as threats.
var benignLabels = map[string]bool{
	"benign": true,
	"clean":  true,
	"none":   true,
}

var severityByLabel = map[string]string{
	"trojan":     "High",
	"ransomware": "High",
	"worm":       "High",
	"spyware":    "Medium",
	"keylogger":  "Medium",
	"adware":     "Low",
	"pup":        "Low",
}

var colorByLabel = map[string]string{
	"trojan":     "blue",
	"adware":     "lightblue",
	"spyware":    "purple",
	"ransomware": "green",
}

type breakdownEntry struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
	Color string `json:"color"`
}

type graphEntry struct {
	Name    string `json:"name"`
	Threats int    `json:"threats"`
}

// GetDashboard handles GET /dashboard: read-side aggregation over the
// caller's scan history.
func (h *dashboardHandler) GetDashboard(c *gin.Context) {
	username := c.MustGet("username").(string)
	user, err := h.authRepo.GetUserByUsername(username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	usersCount, err := h.authRepo.CountUsers()
	if err != nil {
		h.logger.Error("Failed to count users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard data"})
		return
	}

	scans, err := h.ledger.ListPredictions(user.ID, false)
	if err != nil {
		h.logger.Error("Failed to list predictions for dashboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard data"})
		return
	}

	threats := make([]*models.Prediction, 0, len(scans))
	for _, s := range scans {
		if !benignLabels[strings.ToLower(s.Prediction)] {
			threats = append(threats, s)
		}
	}

	today := time.Now()
	threatsToday := 0
	monthCounts := make(map[string]int)
	severityCounts := make(map[string]int)
	typeCounts := make(map[string]int)
	for _, t := range threats {
		if sameDay(t.ScannedAt, today) {
			threatsToday++
		}
		monthCounts[t.ScannedAt.Format("Jan 2006")]++
		if severity, ok := severityByLabel[strings.ToLower(t.Prediction)]; ok {
			severityCounts[severity]++
		}
		typeCounts[t.Prediction]++
	}

	c.JSON(http.StatusOK, gin.H{
		"usersCount":      usersCount,
		"scansCount":      len(scans),
		"threatsCount":    len(threats),
		"threatsToday":    threatsToday,
		"threatGraphData": threatGraph(monthCounts),
		"riskData": []breakdownEntry{
			{Name: "Low", Value: severityCounts["Low"], Color: "#FFD700"},
			{Name: "Medium", Value: severityCounts["Medium"], Color: "#FF8C00"},
			{Name: "High", Value: severityCounts["High"], Color: "#FF4500"},
		},
		"typeData": typeBreakdown(typeCounts),
	})
}

// threatGraph returns the latest three months of threat counts in
// chronological order.
func threatGraph(monthCounts map[string]int) []graphEntry {
	type monthCount struct {
		when  time.Time
		label string
		count int
	}
	entries := make([]monthCount, 0, len(monthCounts))
	for label, count := range monthCounts {
		when, err := time.Parse("Jan 2006", label)
		if err != nil {
			continue
		}
		entries = append(entries, monthCount{when: when, label: label, count: count})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].when.Before(entries[j].when) })
	if len(entries) > 3 {
		entries = entries[len(entries)-3:]
	}

	out := make([]graphEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, graphEntry{Name: e.label, Threats: e.count})
	}
	return out
}

func typeBreakdown(typeCounts map[string]int) []breakdownEntry {
	names := make([]string, 0, len(typeCounts))
	for name := range typeCounts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]breakdownEntry, 0, len(names))
	for _, name := range names {
		color, ok := colorByLabel[strings.ToLower(name)]
		if !ok {
			color = "#ccc"
		}
		out = append(out, breakdownEntry{Name: name, Value: typeCounts[name], Color: color})
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
