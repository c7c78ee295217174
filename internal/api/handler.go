package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/OpenNSW/duty/internal/duty"
	"github.com/OpenNSW/duty/internal/hts"
	"github.com/OpenNSW/duty/internal/hts/store"
)

// MaxBatchItems caps the number of lines accepted by the batch endpoint
const MaxBatchItems = 500

// RecordLister pages through stored tariff records
type RecordLister interface {
	List(ctx context.Context, filter store.TariffRecordFilter) (*store.TariffRecordListResult, error)
}

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker func(ctx context.Context) error

// Handler serves the duty HTTP API
type Handler struct {
	resolver   *hts.Resolver
	calculator *duty.Calculator
	lister     RecordLister
	health     HealthChecker
	schedules  SchedulePublisher
}

func NewHandler(resolver *hts.Resolver, calculator *duty.Calculator, lister RecordLister, health HealthChecker) *Handler {
	return &Handler{
		resolver:   resolver,
		calculator: calculator,
		lister:     lister,
		health:     health,
	}
}

// CalculateRequest is the body of POST /api/duties/calculate
type CalculateRequest struct {
	HTSCode  string               `json:"htsCode"`
	LineItem duty.LineItem        `json:"lineItem"`
	Shipment duty.ShipmentContext `json:"shipment"`
}

// CalculateResponse carries the resolved record and the priced line. Skipped is set when
// the Incoterm puts duties on the seller and nothing was calculated.
type CalculateResponse struct {
	Skipped  bool              `json:"skipped"`
	Reason   string            `json:"reason,omitempty"`
	Resolved *hts.ResolvedDuty `json:"resolved,omitempty"`
	Result   *duty.DutyResult  `json:"result,omitempty"`
}

// BatchItem is one line of a batch request
type BatchItem struct {
	HTSCode  string        `json:"htsCode"`
	LineItem duty.LineItem `json:"lineItem"`
}

// BatchRequest is the body of POST /api/duties/batch
type BatchRequest struct {
	Items    []BatchItem          `json:"items"`
	Shipment duty.ShipmentContext `json:"shipment"`
}

// BatchResponse holds per-line results in request order plus document totals
type BatchResponse struct {
	RequestID string            `json:"requestId"`
	Skipped   bool              `json:"skipped"`
	Reason    string            `json:"reason,omitempty"`
	Results   []duty.LineResult `json:"results"`
	Totals    *duty.Totals      `json:"totals,omitempty"`
}

// HandleHealth handles GET /healthz requests
func (h *Handler) HandleHealth(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			slog.ErrorContext(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleListHSCodes handles GET /api/hscodes requests
func (h *Handler) HandleListHSCodes(c *gin.Context) {
	var filter store.TariffRecordFilter

	if prefix := c.Query("hsCodeStartsWith"); prefix != "" {
		filter.CodeStartsWith = &prefix
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid 'limit' query parameter, must be an integer"))
			return
		}
		filter.Limit = &limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody("invalid 'offset' query parameter, must be an integer"))
			return
		}
		filter.Offset = &offset
	}

	result, err := h.lister.List(c.Request.Context(), filter)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "failed to list HS codes", "error", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to get HS codes"))
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleResolve handles GET /api/hscodes/:code/resolve requests
func (h *Handler) HandleResolve(c *gin.Context) {
	code := c.Param("code")

	resolved, err := h.resolver.Resolve(c.Request.Context(), code)
	if err != nil {
		h.writeResolveError(c, err)
		return
	}
	if resolved == nil {
		c.JSON(http.StatusNotFound, errorBody(fmt.Sprintf("no duty information for %s", code)))
		return
	}
	c.JSON(http.StatusOK, resolved)
}

// HandleCalculate handles POST /api/duties/calculate requests
func (h *Handler) HandleCalculate(c *gin.Context) {
	var req CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if req.HTSCode == "" {
		c.JSON(http.StatusBadRequest, errorBody("htsCode is required"))
		return
	}

	if !duty.ShouldCalculate(req.Shipment.Incoterm) {
		c.JSON(http.StatusOK, CalculateResponse{Skipped: true, Reason: sellerPaysReason(req.Shipment.Incoterm)})
		return
	}

	resolved, err := h.resolver.Resolve(c.Request.Context(), req.HTSCode)
	if err != nil {
		h.writeResolveError(c, err)
		return
	}
	if resolved == nil {
		c.JSON(http.StatusNotFound, errorBody(fmt.Sprintf("no duty information for %s", req.HTSCode)))
		return
	}

	result := h.calculator.Calculate(*resolved, req.LineItem, req.Shipment)
	c.JSON(http.StatusOK, CalculateResponse{Resolved: resolved, Result: &result})
}

// HandleBatch handles POST /api/duties/batch requests
func (h *Handler) HandleBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("invalid request body: %v", err)))
		return
	}
	if len(req.Items) == 0 {
		c.JSON(http.StatusBadRequest, errorBody("items must not be empty"))
		return
	}
	if len(req.Items) > MaxBatchItems {
		c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("at most %d items are accepted per batch", MaxBatchItems)))
		return
	}

	resp := BatchResponse{RequestID: c.GetString(requestIDKey), Results: []duty.LineResult{}}
	if !duty.ShouldCalculate(req.Shipment.Incoterm) {
		resp.Skipped = true
		resp.Reason = sellerPaysReason(req.Shipment.Incoterm)
		c.JSON(http.StatusOK, resp)
		return
	}

	lines := make([]duty.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = duty.Line{HTSCode: item.HTSCode, Item: item.LineItem}
	}

	results, err := h.calculator.ComputeLines(c.Request.Context(), lines, req.Shipment)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "batch duty calculation failed", "requestId", resp.RequestID, "items", len(lines), "error", err)
		c.JSON(http.StatusInternalServerError, errorBody("failed to calculate duties"))
		return
	}

	totals := duty.Summarize(results)
	resp.Results = results
	resp.Totals = &totals
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeResolveError(c *gin.Context, err error) {
	if errors.Is(err, hts.ErrInvalidCode) {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	slog.ErrorContext(c.Request.Context(), "failed to resolve HTS code", "error", err)
	c.JSON(http.StatusInternalServerError, errorBody("failed to resolve HTS code"))
}

func sellerPaysReason(incoterm string) string {
	term, _ := duty.LookupIncoterm(incoterm)
	return fmt.Sprintf("Incoterm %s (%s): seller is responsible for paying duties", term.Code, term.Name)
}

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}
