package controllers

import (
	"fmt"
	"net/http"
	"time"

	"cryptogram/internal/services"

	json "github.com/goccy/go-json"
)

type HealthController struct {
	session   services.SessionServiceInterface
	startTime time.Time
}

type healthResponse struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	PendingUploads int     `json:"pending_uploads"`
	FailedUploads  int     `json:"failed_uploads"`
	SyncRunning    bool    `json:"sync_running"`
}

// Health reports "degraded" when the local store cannot be read.
func (hc *HealthController) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(hc.startTime)
	resp := healthResponse{
		Status:        "ok",
		Uptime:        formatDuration(uptime),
		UptimeSeconds: uptime.Seconds(),
	}
	if st, err := hc.session.SyncStatus(r.Context()); err != nil {
		resp.Status = "degraded"
	} else {
		resp.PendingUploads = st.Pending
		resp.FailedUploads = st.Failed
		resp.SyncRunning = st.Running
	}

	gson, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(gson)
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

func NewHealthController(session services.SessionServiceInterface) *HealthController {
	return &HealthController{
		session:   session,
		startTime: time.Now(),
	}
}
