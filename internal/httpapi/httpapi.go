package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"posgo/backend/internal/domain"
	"posgo/backend/internal/metrics"
	"posgo/backend/internal/service"
	"posgo/backend/internal/store"
	"posgo/backend/internal/tenant"
)

var (
	cashierRoles = []string{domain.RoleCashier, domain.RoleAdmin, domain.RoleSuperAdmin}
	adminRoles   = []string{domain.RoleAdmin, domain.RoleSuperAdmin}
	platformRole = []string{domain.RoleSuperAdmin}
)

type Options struct {
	AllowedOrigin string
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	tenants       *tenant.Resolver
	allowedOrigin string
	metrics       *metrics.Metrics
	logger        *zap.Logger
	loginLimiter  *attemptLimiter
	leadLimiter   *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, tenants *tenant.Resolver, opts Options) *API {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		logger.Warn("crypto/rand failed; using fallback csrf secret", zap.Error(err))
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		tenants:       tenants,
		allowedOrigin: opts.AllowedOrigin,
		metrics:       opts.Metrics,
		logger:        logger.Named("http"),
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		leadLimiter:   newAttemptLimiter(5, 10*time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes the hex HMAC-SHA256 token of one hour bucket.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(a.withMiddleware)
	r.Use(a.metrics.Middleware)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", a.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)
		r.Post("/auth/logout", a.requireAuth(a.handleLogout, cashierRoles...))
		r.Get("/auth/me", a.requireAuth(a.handleMe, cashierRoles...))

		r.Get("/bootstrap", a.requireAuth(a.handleBootstrap, cashierRoles...))

		r.Get("/products", a.requireAuth(a.handleListProducts, cashierRoles...))
		r.Post("/products", a.requireAuth(a.handleCreateProduct, adminRoles...))
		r.Get("/products/search", a.requireAuth(a.handleSearchProducts, cashierRoles...))
		r.Get("/products/barcode/{code}", a.requireAuth(a.handleBarcode, cashierRoles...))
		r.Put("/products/{id}", a.requireAuth(a.handleUpdateProduct, adminRoles...))
		r.Post("/products/{id}/images", a.requireAuth(a.handleProductImage, adminRoles...))

		r.Post("/cart/quote", a.requireAuth(a.handleCartQuote, cashierRoles...))
		r.Post("/checkout", a.requireAuth(a.handleCheckout, cashierRoles...))

		r.Get("/transactions", a.requireAuth(a.handleListTransactions, cashierRoles...))
		r.Get("/transactions/{id}/receipt", a.requireAuth(a.handleReceipt, cashierRoles...))
		r.Post("/transactions/{id}/send", a.requireAuth(a.handleSendReceipt, cashierRoles...))

		r.Post("/shifts/open", a.requireAuth(a.handleShiftOpen, cashierRoles...))
		r.Post("/shifts/cash-in", a.requireAuth(a.handleCashIn, cashierRoles...))
		r.Post("/shifts/cash-out", a.requireAuth(a.handleCashOut, cashierRoles...))
		r.Post("/shifts/close", a.requireAuth(a.handleShiftClose, cashierRoles...))
		r.Get("/shifts/active", a.requireAuth(a.handleShiftActive, cashierRoles...))
		r.Get("/shifts", a.requireAuth(a.handleListShifts, adminRoles...))
		r.Get("/shifts/{id}/report", a.requireAuth(a.handleShiftReport, adminRoles...))
		r.Post("/shifts/{id}/reconcile", a.requireAuth(a.handleReconcile, adminRoles...))

		r.Get("/suppliers", a.requireAuth(a.handleListSuppliers, adminRoles...))
		r.Post("/suppliers", a.requireAuth(a.handleCreateSupplier, adminRoles...))
		r.Get("/customers", a.requireAuth(a.handleListCustomers, cashierRoles...))
		r.Post("/customers", a.requireAuth(a.handleCreateCustomer, cashierRoles...))
		r.Get("/settings", a.requireAuth(a.handleGetSettings, cashierRoles...))
		r.Put("/settings", a.requireAuth(a.handleUpdateSettings, adminRoles...))

		r.Post("/purchases/quote", a.requireAuth(a.handlePurchaseQuote, adminRoles...))
		r.Get("/purchases", a.requireAuth(a.handleListPurchases, adminRoles...))
		r.Post("/purchases", a.requireAuth(a.handleCommitPurchase, adminRoles...))

		r.Get("/users/cashiers", a.requireAuth(a.handleListCashiers, adminRoles...))
		r.Post("/users/cashiers", a.requireAuth(a.handleCreateCashier, adminRoles...))

		r.Post("/demo/reset", a.requireAuth(a.handleDemoReset, adminRoles...))

		r.Post("/leads", a.handleCreateLead)
		r.Get("/leads", a.requireAuth(a.handleListLeads, platformRole...))
		r.Get("/stores", a.requireAuth(a.handleListStores, platformRole...))
		r.Delete("/stores/{id}", a.requireAuth(a.handleDeleteStore, platformRole...))
	})

	return r
}

// requireAuth validates the bearer token, loads the session profile and
// resolves the caller's store before invoking next.
func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			a.writeServiceError(w, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		if a.tenants != nil {
			storeID, err := a.tenants.StoreID(r.Context(), actor.Profile())
			if err != nil {
				a.writeServiceError(w, err)
				return
			}
			actor.StoreID = storeID
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// csrfExemptPaths are called before a client can fetch a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces the X-CSRF-Token header on state-changing methods.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(startedAt)))
	})
}

// statusFor maps service error kinds to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrUnsupportedPayment), errors.Is(err, domain.ErrInvalidPurchase):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoActiveShift), errors.Is(err, domain.ErrShiftAlreadyOpen),
		errors.Is(err, domain.ErrShiftClosed), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry internal details.
	msg := err.Error()
	if status >= 500 {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
