package handlers

import (
	"net/http"
	"strings"

	"github.com/quoteforge/quoting/internal/catalog"
	"github.com/quoteforge/quoting/internal/httpx"
)

type SkuHandler struct {
	Store *catalog.Store
}

func NewSkuHandler(store *catalog.Store) *SkuHandler {
	return &SkuHandler{Store: store}
}

// List: GET /skus – filters: q, pricebook_id, parent_sku_id (0 selects
// root SKUs), name, code.
func (h *SkuHandler) List(w http.ResponseWriter, r *http.Request) {
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		skus, err := h.Store.SearchSkus(q, uint(queryInt(r, "pricebook_id", 0)))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": skus, "count": len(skus)})
		return
	}
	f := catalog.SkuFilter{
		PricebookID: uint(queryInt(r, "pricebook_id", 0)),
		Name:        strings.TrimSpace(r.URL.Query().Get("name")),
		Code:        strings.TrimSpace(r.URL.Query().Get("code")),
		Offset:      queryInt(r, "offset", 0),
		Limit:       queryInt(r, "limit", 100),
	}
	if v := r.URL.Query().Get("parent_sku_id"); v != "" {
		parent := uint(queryInt(r, "parent_sku_id", 0))
		f.ParentSkuID = &parent
	}
	skus, err := h.Store.ListSkus(f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": skus, "count": len(skus)})
}

// Create: POST /skus
func (h *SkuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in catalog.SkuInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	sku, err := h.Store.CreateSku(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sku)
}

// Get: GET /skus/{id}
func (h *SkuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sku, err := h.Store.GetSku(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sku)
}

// Update: PUT /skus/{id}
func (h *SkuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in catalog.SkuInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	sku, err := h.Store.UpdateSku(id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sku)
}

// Delete: DELETE /skus/{id}
func (h *SkuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteSku(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}
