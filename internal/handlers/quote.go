package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quoteforge/quoting/internal/httpx"
	"github.com/quoteforge/quoting/internal/models"
	"github.com/quoteforge/quoting/internal/pdf"
	"github.com/quoteforge/quoting/internal/services"
)

type QuoteHandler struct {
	Svc     *services.QuoteService
	Docs    *services.DocumentService
	Pricing *services.PricingService
	PDF     *pdf.Renderer
}

func NewQuoteHandler(svc *services.QuoteService, docs *services.DocumentService, pricing *services.PricingService, renderer *pdf.Renderer) *QuoteHandler {
	return &QuoteHandler{Svc: svc, Docs: docs, Pricing: pricing, PDF: renderer}
}

type createQuoteRequest struct {
	AccountID      uint                        `json:"account_id"`
	PricebookID    uint                        `json:"pricebook_id"`
	Lines          []services.QuoteLineRequest `json:"lines"`
	IdempotencyKey string                      `json:"idempotency_key"`
}

type quoteResponse struct {
	ID          uint               `json:"id"`
	AccountID   uint               `json:"account_id"`
	PricebookID uint               `json:"pricebook_id"`
	Status      models.QuoteStatus `json:"status"`
	Lines       []models.QuoteLine `json:"lines"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	CreatedAt   string             `json:"created_at"`
}

func (h *QuoteHandler) toResponse(q *models.Quote) quoteResponse {
	return quoteResponse{
		ID:          q.ID,
		AccountID:   q.AccountID,
		PricebookID: q.PricebookID,
		Status:      q.Status,
		Lines:       q.Lines,
		TotalAmount: h.quoteTotal(q),
		CreatedAt:   q.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// quoteTotal sums the discounted line totals, rounded to two decimals.
// Lines without a price snapshot contribute zero.
func (h *QuoteHandler) quoteTotal(q *models.Quote) decimal.Decimal {
	priced := make([]services.PricedLine, 0, len(q.Lines))
	for _, line := range q.Lines {
		unit := decimal.Zero
		if line.UnitPrice != nil {
			unit = *line.UnitPrice
		}
		priced = append(priced, services.PricedLine{
			UnitPrice:   unit,
			Qty:         line.Qty,
			DiscountPct: line.DiscountPct,
		})
	}
	return h.Pricing.Aggregate(priced).Subtotal
}

// Create: POST /actions/create_quote
// A missing idempotency key gets a generated one so every creation passes
// through the same ledger path.
func (h *QuoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQuoteRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	quote, err := h.Svc.Create(services.CreateQuoteRequest{
		AccountID:   req.AccountID,
		PricebookID: req.PricebookID,
		Lines:       req.Lines,
	}, key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(quote))
}

// Get: GET /quotes/{id}
func (h *QuoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	quote, err := h.Svc.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(quote))
}

// List: GET /quotes
func (h *QuoteHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.ListFilter{
		Status: models.QuoteStatus(r.URL.Query().Get("status")),
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 100),
	}
	f.AccountID = uint(queryInt(r, "account_id", 0))
	f.PricebookID = uint(queryInt(r, "pricebook_id", 0))
	quotes, err := h.Svc.List(f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	items := make([]quoteResponse, 0, len(quotes))
	for i := range quotes {
		items = append(items, h.toResponse(&quotes[i]))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

// SetStatus: POST /quotes/{id}/status
func (h *QuoteHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status models.QuoteStatus `json:"status"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	quote, err := h.Svc.SetStatus(id, req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(quote))
}

// Delete: DELETE /quotes/{id}
func (h *QuoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.Delete(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// AddLine: POST /quotes/{id}/lines
func (h *QuoteHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req services.QuoteLineRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	line, err := h.Svc.AddLine(id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, line)
}

// UpdateLine: PUT /lines/{id}
func (h *QuoteHandler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req services.QuoteLineRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	line, err := h.Svc.UpdateLine(id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, line)
}

// DeleteLine: DELETE /lines/{id}
func (h *QuoteHandler) DeleteLine(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.DeleteLine(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// RenderPDF: GET /quotes/{id}/pdf streams the rendered document and also
// persists a copy under the output dir.
func (h *QuoteHandler) RenderPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.Docs.Derive(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	data, err := h.PDF.Render(doc)
	if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	if _, err := h.PDF.WriteFile(id, data); err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "pdf_generation_failed", nil)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=quote_%d.pdf", id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Document: GET /quotes/{id}/document returns the derived document as JSON.
func (h *QuoteHandler) Document(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.Docs.Derive(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || n == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(n), true
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
