package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quoteforge/quoting/internal/config"
	"github.com/quoteforge/quoting/internal/db"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Config{
		Port:           "0",
		Env:            "test",
		PDFOutputDir:   t.TempDir(),
		IdempotencyTTL: 24 * time.Hour,
	}
	return New(gdb, cfg)
}

func doJSON(t *testing.T, h http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewBuffer(b)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

// seedViaAPI provisions an account, a pricebook and two SKUs through the
// HTTP surface and returns their ids.
func seedViaAPI(t *testing.T, h http.Handler) (accountID, pricebookID, widgetID, platformID uint) {
	t.Helper()
	var created struct {
		ID uint `json:"id"`
	}

	rec := doJSON(t, h, http.MethodPost, "/accounts", map[string]any{"name": "Acme Corp", "domain": "acme.example"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create account: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &created)
	accountID = created.ID

	rec = doJSON(t, h, http.MethodPost, "/pricebooks", map[string]any{"name": "Standard", "currency": "usd", "is_default": true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pricebook: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &created)
	pricebookID = created.ID

	rec = doJSON(t, h, http.MethodPost, "/skus", map[string]any{
		"code": "WIDGET", "name": "Widget", "pricebook_id": pricebookID, "unit_price": "10.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sku: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &created)
	widgetID = created.ID

	rec = doJSON(t, h, http.MethodPost, "/skus", map[string]any{
		"code": "PLATFORM", "name": "Platform Suite", "pricebook_id": pricebookID, "unit_price": "500.00",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sku: %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &created)
	platformID = created.ID
	return
}

func TestHealthz(t *testing.T) {
	h := setupRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec.Header().Get("X-Trace-ID") == "" {
		t.Fatal("missing trace id header")
	}
}

func TestCreateQuoteEndpoint(t *testing.T) {
	h := setupRouter(t)
	accountID, pricebookID, widgetID, _ := seedViaAPI(t, h)

	rec := doJSON(t, h, http.MethodPost, "/actions/create_quote", map[string]any{
		"account_id":   accountID,
		"pricebook_id": pricebookID,
		"lines": []map[string]any{
			{"sku_id": widgetID, "qty": 10, "discount_pct": 0.10},
		},
		"idempotency_key": "http-key-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create quote: %d %s", rec.Code, rec.Body.String())
	}
	var quote struct {
		ID          uint   `json:"id"`
		Status      string `json:"status"`
		TotalAmount string `json:"total_amount"`
	}
	decodeBody(t, rec, &quote)
	if quote.Status != "draft" {
		t.Fatalf("status = %q", quote.Status)
	}
	if quote.TotalAmount != "90" && quote.TotalAmount != "90.00" {
		t.Fatalf("total = %q", quote.TotalAmount)
	}

	// Same key replays the same quote.
	rec = doJSON(t, h, http.MethodPost, "/actions/create_quote", map[string]any{
		"account_id":   accountID,
		"pricebook_id": pricebookID,
		"lines": []map[string]any{
			{"sku_id": widgetID, "qty": 1},
		},
		"idempotency_key": "http-key-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("replay: %d %s", rec.Code, rec.Body.String())
	}
	var replay struct {
		ID uint `json:"id"`
	}
	decodeBody(t, rec, &replay)
	if replay.ID != quote.ID {
		t.Fatalf("replay id %d != original %d", replay.ID, quote.ID)
	}
}

func TestCreateQuoteValidationStatus(t *testing.T) {
	h := setupRouter(t)
	accountID, pricebookID, _, _ := seedViaAPI(t, h)

	rec := doJSON(t, h, http.MethodPost, "/actions/create_quote", map[string]any{
		"account_id":   accountID,
		"pricebook_id": pricebookID,
		"lines":        []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty lines: %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusEndpointLifecycle(t *testing.T) {
	h := setupRouter(t)
	accountID, pricebookID, widgetID, _ := seedViaAPI(t, h)

	rec := doJSON(t, h, http.MethodPost, "/actions/create_quote", map[string]any{
		"account_id":   accountID,
		"pricebook_id": pricebookID,
		"lines":        []map[string]any{{"sku_id": widgetID, "qty": 1}},
	})
	var quote struct {
		ID uint `json:"id"`
	}
	decodeBody(t, rec, &quote)

	for _, status := range []string{"sent", "accepted"} {
		rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/status", quote.ID), map[string]any{"status": status})
		if rec.Code != http.StatusOK {
			t.Fatalf("set %s: %d %s", status, rec.Code, rec.Body.String())
		}
	}

	// accepted is terminal
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/status", quote.ID), map[string]any{"status": "draft"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("terminal transition: %d %s", rec.Code, rec.Body.String())
	}

	// line edits are frozen after draft
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/quotes/%d/lines", quote.ID), map[string]any{"sku_id": widgetID, "qty": 1})
	if rec.Code != http.StatusConflict {
		t.Fatalf("frozen line add: %d %s", rec.Code, rec.Body.String())
	}
}

func TestQuoteNotFoundStatus(t *testing.T) {
	h := setupRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/quotes/424242", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d", rec.Code)
	}
}

func TestPDFEndpoint(t *testing.T) {
	h := setupRouter(t)
	accountID, pricebookID, widgetID, _ := seedViaAPI(t, h)

	rec := doJSON(t, h, http.MethodPost, "/actions/create_quote", map[string]any{
		"account_id":   accountID,
		"pricebook_id": pricebookID,
		"lines":        []map[string]any{{"sku_id": widgetID, "qty": 2}},
	})
	var quote struct {
		ID uint `json:"id"`
	}
	decodeBody(t, rec, &quote)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/quotes/%d/pdf", quote.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatal("body is not a pdf")
	}
}

func TestDocumentEndpoint(t *testing.T) {
	h := setupRouter(t)
	accountID, pricebookID, widgetID, _ := seedViaAPI(t, h)

	rec := doJSON(t, h, http.MethodPost, "/actions/create_quote", map[string]any{
		"account_id":   accountID,
		"pricebook_id": pricebookID,
		"lines":        []map[string]any{{"sku_id": widgetID, "qty": 10, "discount_pct": 0.10}},
	})
	var quote struct {
		ID uint `json:"id"`
	}
	decodeBody(t, rec, &quote)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/quotes/%d/document", quote.ID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("document: %d %s", rec.Code, rec.Body.String())
	}
	var doc struct {
		Currency      string `json:"currency"`
		PricebookName string `json:"pricebook_name"`
		BillToName    string `json:"bill_to_name"`
	}
	decodeBody(t, rec, &doc)
	if doc.Currency != "USD" || doc.BillToName != "Acme Corp" {
		t.Fatalf("unexpected doc header: %+v", doc)
	}
}

func TestAccountDuplicateStatus(t *testing.T) {
	h := setupRouter(t)
	seedViaAPI(t, h)

	rec := doJSON(t, h, http.MethodPost, "/accounts", map[string]any{"name": "acme corp"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate account: %d %s", rec.Code, rec.Body.String())
	}
}

func TestSkuListFilter(t *testing.T) {
	h := setupRouter(t)
	_, pricebookID, _, _ := seedViaAPI(t, h)

	rec := doJSON(t, h, http.MethodGet, fmt.Sprintf("/skus?pricebook_id=%d", pricebookID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list skus: %d", rec.Code)
	}
	var list struct {
		Count int `json:"count"`
	}
	decodeBody(t, rec, &list)
	if list.Count != 2 {
		t.Fatalf("count = %d", list.Count)
	}
}
