// internal/service/booking/interfaces/http_handler.go
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"tripnexus/internal/service/booking/application"
	"tripnexus/internal/service/booking/domain"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const serviceName = "booking-service"

// BookingHandler 封装了预订服务的 HTTP 处理器
type BookingHandler struct {
	reservation *application.ReservationService
	orders      *application.OrderService
	splitter    *application.OrderSplitter
	exceptions  *application.ExceptionService
}

// NewBookingHandler 创建一个新的 HTTP 处理器实例
func NewBookingHandler(reservation *application.ReservationService, orders *application.OrderService, splitter *application.OrderSplitter, exceptions *application.ExceptionService) *BookingHandler {
	return &BookingHandler{
		reservation: reservation,
		orders:      orders,
		splitter:    splitter,
		exceptions:  exceptions,
	}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *BookingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/reserve_inventory", h.reserveHandler)
	mux.HandleFunc("/release_inventory", h.releaseHandler)
	mux.HandleFunc("/create_order", h.createOrderHandler)
	mux.HandleFunc("/get_order", h.getOrderHandler)
	mux.HandleFunc("/transition_order", h.transitionHandler)
	mux.HandleFunc("/split_and_process", h.processHandler)
	mux.HandleFunc("/exceptions/raise", h.raiseExceptionHandler)
	mux.HandleFunc("/exceptions/pending", h.listPendingExceptionsHandler)
	mux.HandleFunc("/exceptions/start", h.startExceptionHandler)
	mux.HandleFunc("/exceptions/resolve", h.resolveExceptionHandler)
}

func (h *BookingHandler) reserveHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.ReserveInventory")
	defer span.End()

	var req application.ReserveInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	checkIn, checkOut, err := req.Dates()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.reservation.Reserve(ctx, req.RoomTypeID, checkIn, checkOut, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]string{"result": "ok"})
}

func (h *BookingHandler) releaseHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.ReleaseInventory")
	defer span.End()

	var req application.ReserveInventoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	checkIn, checkOut, err := req.Dates()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.reservation.Release(ctx, req.RoomTypeID, checkIn, checkOut, req.Quantity); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]string{"result": "ok"})
}

func (h *BookingHandler) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.CreateOrder")
	defer span.End()

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	dateReq := application.ReserveInventoryRequest{CheckIn: req.CheckIn, CheckOut: req.CheckOut}
	checkIn, checkOut, err := dateReq.Dates()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lines, err := req.ToDomainLines()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.orders.CreateOrder(ctx, lines, checkIn, checkOut)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]string{"order_id": order.ID, "status": string(order.Status)})
}

func (h *BookingHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	order, items, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"order":     order,
		"sub_items": items,
	})
}

func (h *BookingHandler) transitionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.TransitionOrder")
	defer span.End()

	var req application.TransitionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	order, err := h.orders.TransitionOrderStatus(ctx, req.OrderID, domain.Status(req.To), req.Actor, req.Remark)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]string{"order_id": order.ID, "status": string(order.Status)})
}

func (h *BookingHandler) processHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.SplitAndProcess")
	defer span.End()

	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	if err := h.splitter.Process(ctx, orderID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, map[string]string{"result": "ok"})
}

func (h *BookingHandler) raiseExceptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)
	ctx, span := otel.Tracer(serviceName).Start(ctx, "http.RaiseException")
	defer span.End()

	var req application.RaiseExceptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind, err := req.ToKind()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.exceptions.Raise(ctx, req.OrderID, req.SubItemID, kind, req.Message, req.Context)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, record)
}

func (h *BookingHandler) listPendingExceptionsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.exceptions.ListPending(ctx, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, records)
}

func (h *BookingHandler) startExceptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.ExceptionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	record, err := h.exceptions.StartProcessing(ctx, req.ExceptionID, req.Handler)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, record)
}

func (h *BookingHandler) resolveExceptionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := extractTraceContext(r)

	var req application.ExceptionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	record, err := h.exceptions.Resolve(ctx, req.ExceptionID, req.Handler, req.Remark)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, record)
}

func extractTraceContext(r *http.Request) context.Context {
	propagator := otel.GetTextMapPropagator()
	return propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
}

// writeDomainError 把领域错误映射为合适的 HTTP 状态码。
func writeDomainError(w http.ResponseWriter, err error) {
	var invalidTransition *domain.InvalidTransitionError
	var invalidException *domain.InvalidExceptionStateError
	switch {
	case errors.Is(err, domain.ErrInsufficientCapacity):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrLockTimeout), errors.Is(err, domain.ErrLockBusy):
		// 瞬时失败，客户端可重试
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrLedgerNotFound),
		errors.Is(err, domain.ErrExceptionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalidTransition), errors.As(err, &invalidException):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
