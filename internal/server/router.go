package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/quoteforge/quoting/internal/catalog"
	"github.com/quoteforge/quoting/internal/config"
	"github.com/quoteforge/quoting/internal/handlers"
	"github.com/quoteforge/quoting/internal/httpx"
	"github.com/quoteforge/quoting/internal/pdf"
	"github.com/quoteforge/quoting/internal/services"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config) http.Handler {
	mux := http.NewServeMux()

	// --- Health endpoints ---
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		// Lightweight DB check; details stay out of the body.
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Catalog endpoints
	store := catalog.NewStore(db)
	ah := handlers.NewAccountHandler(store)
	mux.HandleFunc("GET /accounts", ah.List)
	mux.HandleFunc("POST /accounts", ah.Create)
	mux.HandleFunc("GET /accounts/{id}", ah.Get)
	mux.HandleFunc("PUT /accounts/{id}", ah.Update)
	mux.HandleFunc("DELETE /accounts/{id}", ah.Delete)

	pbh := handlers.NewPricebookHandler(store)
	mux.HandleFunc("GET /pricebooks", pbh.List)
	mux.HandleFunc("POST /pricebooks", pbh.Create)
	mux.HandleFunc("GET /pricebooks/default", pbh.Default)
	mux.HandleFunc("GET /pricebooks/{id}", pbh.Get)
	mux.HandleFunc("PUT /pricebooks/{id}", pbh.Update)
	mux.HandleFunc("DELETE /pricebooks/{id}", pbh.Delete)

	sh := handlers.NewSkuHandler(store)
	mux.HandleFunc("GET /skus", sh.List)
	mux.HandleFunc("POST /skus", sh.Create)
	mux.HandleFunc("GET /skus/{id}", sh.Get)
	mux.HandleFunc("PUT /skus/{id}", sh.Update)
	mux.HandleFunc("DELETE /skus/{id}", sh.Delete)

	// Quote endpoints
	pricing := services.NewPricingService()
	validator := services.NewQuoteValidator(db)
	ledger := services.NewIdempotencyLedger(db, cfg.IdempotencyTTL)
	quoteSvc := services.NewQuoteService(db, validator, pricing, ledger)
	docSvc := services.NewDocumentService(db, quoteSvc, pricing)
	renderer := pdf.NewRenderer(cfg.PDFOutputDir)
	qh := handlers.NewQuoteHandler(quoteSvc, docSvc, pricing, renderer)
	mux.HandleFunc("POST /actions/create_quote", qh.Create)
	mux.HandleFunc("GET /quotes", qh.List)
	mux.HandleFunc("GET /quotes/{id}", qh.Get)
	mux.HandleFunc("DELETE /quotes/{id}", qh.Delete)
	mux.HandleFunc("POST /quotes/{id}/status", qh.SetStatus)
	mux.HandleFunc("POST /quotes/{id}/lines", qh.AddLine)
	mux.HandleFunc("GET /quotes/{id}/document", qh.Document)
	mux.HandleFunc("GET /quotes/{id}/pdf", qh.RenderPDF)
	mux.HandleFunc("PUT /lines/{id}", qh.UpdateLine)
	mux.HandleFunc("DELETE /lines/{id}", qh.DeleteLine)

	return withRequestLogging(mux)
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// withRequestLogging tags every request with a trace id and logs the
// method, path, status and latency.
func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", traceID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logrus.WithFields(logrus.Fields{
			"trace_id": traceID,
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Info("request handled")
	})
}
