// internal/service/distribution/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"tripnexus/internal/service/distribution/application"
	"tripnexus/internal/service/distribution/domain"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// DistributionHandler 封装了分发服务的 HTTP 处理器
type DistributionHandler struct {
	syncSvc *application.SyncService
}

func NewDistributionHandler(syncSvc *application.SyncService) *DistributionHandler {
	return &DistributionHandler{syncSvc: syncSvc}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *DistributionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/filter_changed_inventory", h.filterChangedHandler)
	mux.HandleFunc("/sync_inventory", h.syncHandler)
}

// filterChangedHandler 只做变更过滤并返回变更子集，便于调试与人工核对。
func (h *DistributionHandler) filterChangedHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer("distribution-service").Start(ctx, "http.FilterChangedInventory")
	defer span.End()

	var snapshots []domain.InventorySnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshots); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	changed, err := h.syncSvc.FilterChanged(ctx, snapshots)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"total":   len(snapshots),
		"changed": changed,
	})
}

// syncHandler 同步触发一次完整的过滤+推送流程。
func (h *DistributionHandler) syncHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer("distribution-service").Start(ctx, "http.SyncInventory")
	defer span.End()

	var snapshots []domain.InventorySnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshots); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.syncSvc.SyncBatch(ctx, snapshots); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
}

func extractTraceContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}
