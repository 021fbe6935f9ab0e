package handlers

import (
	"net/http"
	"strings"

	"github.com/quoteforge/quoting/internal/catalog"
	"github.com/quoteforge/quoting/internal/httpx"
)

type AccountHandler struct {
	Store *catalog.Store
}

func NewAccountHandler(store *catalog.Store) *AccountHandler {
	return &AccountHandler{Store: store}
}

// List: GET /accounts – optional ?q= search over name and domain.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		accounts, err := h.Store.SearchAccounts(q)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"items": accounts, "count": len(accounts)})
		return
	}
	accounts, err := h.Store.ListAccounts(queryInt(r, "offset", 0), queryInt(r, "limit", 100))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": accounts, "count": len(accounts)})
}

// Create: POST /accounts
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in catalog.AccountInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	acct, err := h.Store.CreateAccount(in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acct)
}

// Get: GET /accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	acct, err := h.Store.GetAccount(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

// Update: PUT /accounts/{id}
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in catalog.AccountInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	acct, err := h.Store.UpdateAccount(id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

// Delete: DELETE /accounts/{id}
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Store.DeleteAccount(id); err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}
