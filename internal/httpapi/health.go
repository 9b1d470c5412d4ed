package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/nordicledger/accounting-gateway/internal/domain"
	"github.com/nordicledger/accounting-gateway/internal/httpresponse"
)

// healthz is a liveness probe: it never touches the database, so a degraded
// DB doesn't take the process out of a load balancer's rotation (the
// orchestrator is expected to watch /system/status for that).
func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	httpresponse.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Status     string                    `json:"status"`
	Version    string                    `json:"version,omitempty"`
	UptimeSecs int64                     `json:"uptimeSeconds"`
	Go         goRuntimeStats            `json:"go"`
	Database   string                    `json:"database"`
	Vendors    map[domain.Provider]string `json:"vendors"`
}

type goRuntimeStats struct {
	Version    string  `json:"version"`
	Goroutines int     `json:"goroutines"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
	MemUsedPct float64 `json:"memUsedPercent,omitempty"`
}

// systemStatus reports process uptime, Go runtime stats and per-vendor
// configuration state, supplementing spec.md §6's representative route list
// (SPEC_FULL.md §6) with an operator-facing health aggregate in the
// teacher's system-status style.
func (h *handler) systemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbStatus := "ok"
	if _, err := h.deps.DB.GetTenant(ctx, "__healthcheck__"); err != nil && err.Error() != "database: not found" {
		dbStatus = "degraded"
	}

	vendors := map[domain.Provider]string{}
	for _, p := range []domain.Provider{
		domain.ProviderFortnox, domain.ProviderVisma, domain.ProviderBriox,
		domain.ProviderBokio, domain.ProviderBjornLunden,
	} {
		if h.deps.Vendors.Configured[p] {
			vendors[p] = "configured"
		} else {
			vendors[p] = "not_configured"
		}
	}

	stats := goRuntimeStats{Version: runtime.Version(), Goroutines: runtime.NumGoroutine()}
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		stats.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemUsedPct = vm.UsedPercent
	}

	resp := statusResponse{
		Status:     "ok",
		Version:    h.deps.Version,
		UptimeSecs: int64(time.Since(h.deps.StartedAt).Seconds()),
		Go:         stats,
		Database:   dbStatus,
		Vendors:    vendors,
	}
	httpresponse.WriteJSON(w, http.StatusOK, resp)
}
