package web

import (
	"net/http"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// statusResponse is the GET /status payload
type statusResponse struct {
	Status         string         `json:"status"`
	Version        string         `json:"version"`
	Uptime         string         `json:"uptime"`
	ActiveSessions int            `json:"active_sessions"`
	Counts         map[string]int `json:"counts"`
	System         *systemInfo    `json:"system,omitempty"`
}

// systemInfo is a host resource snapshot, best effort
type systemInfo struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	LoadAvg1      float64 `json:"load_avg_1"`
	DiskPercent   float64 `json:"disk_percent"`
}

// handleStatus reports service health, record counts and host resources
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts()
	if err != nil {
		s.writeStoreError(w, err, "status")
		return
	}

	resp := statusResponse{
		Status:         "ok",
		Version:        s.version,
		Uptime:         time.Since(s.startTime).Truncate(time.Second).String(),
		ActiveSessions: s.auth.ActiveSessions(),
		Counts:         counts,
		System:         collectSystemInfo(),
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// collectSystemInfo gathers host metrics, returns nil when nothing is available
func collectSystemInfo() *systemInfo {
	info := systemInfo{}
	collected := false

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info.CPUPercent = percents[0]
		collected = true
	} else if err != nil {
		log.Printf("[DEBUG] failed to get cpu percent: %v", err)
	}

	if v, err := mem.VirtualMemory(); err == nil {
		info.MemoryPercent = v.UsedPercent
		collected = true
	} else {
		log.Printf("[DEBUG] failed to get memory info: %v", err)
	}

	if loads, err := load.Avg(); err == nil {
		info.LoadAvg1 = loads.Load1
		collected = true
	} else {
		log.Printf("[DEBUG] failed to get load average: %v", err)
	}

	if usage, err := disk.Usage("/"); err == nil {
		info.DiskPercent = usage.UsedPercent
		collected = true
	} else {
		log.Printf("[DEBUG] failed to get disk usage: %v", err)
	}

	if !collected {
		return nil
	}
	return &info
}
