package handlers

import (
	"net/http"

	"github.com/quoteforge/quoting/internal/catalog"
	"github.com/quoteforge/quoting/internal/httpx"
)

type PricebookHandler struct {
	Store *catalog.Store
}

func NewPricebookHandler(store *catalog.Store) *PricebookHandler {
	return &PricebookHandler{Store: store}
}

// List: GET /pricebooks
func (h *PricebookHandler) List(w http.ResponseWriter, r *http.Request) {
	pbs, err := h.Store.ListPricebooks(queryInt(r, "offset", 0), queryInt(r, "limit", 100))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": pbs, "count": len(pbs)})
}

// Create: POST /pricebooks
func (h *PricebookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in catalog.PricebookInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	pb, err := h.Store.CreatePricebook(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pb)
}

// Default: GET /pricebooks/default
func (h *PricebookHandler) Default(w http.ResponseWriter, r *http.Request) {
	pb, err := h.Store.GetDefaultPricebook()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if pb == nil {
		httpx.JSONError(w, http.StatusNotFound, "no default pricebook configured", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, pb)
}

// Get: GET /pricebooks/{id}
func (h *PricebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pb, err := h.Store.GetPricebook(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pb)
}

// Update: PUT /pricebooks/{id}
func (h *PricebookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in catalog.PricebookInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	pb, err := h.Store.UpdatePricebook(id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, pb)
}

// Delete: DELETE /pricebooks/{id}
func (h *PricebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeletePricebook(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}
