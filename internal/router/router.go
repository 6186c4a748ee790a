package router

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v6"
	"github.com/didip/tollbooth/v6/limiter"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-giftlist/internal/auth"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/giftlist"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/httpx"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/shopify"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/user"
	"github.com/ovaphlow/pitchfork/service-giftlist/internal/webhook"
	"github.com/ovaphlow/pitchfork/service-giftlist/pkg/utilities"
)

// RequestIDHeader carries the per-request id, echoed back to the client.
const RequestIDHeader = "X-Request-Id"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs every request at debug level (warn for 5xx) with
// a request id taken from X-Request-Id or generated by ids.
func LoggingMiddleware(logger *zap.SugaredLogger, ids *utilities.IDNode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" || len(reqID) > 64 {
				reqID = ids.Next()
			}
			w.Header().Set(RequestIDHeader, reqID)
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; base-uri 'self';")
			}
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware limits POSTs per client IP. A non-positive rate
// disables limiting.
func RateLimitMiddleware(perSecond float64, burst int) func(http.Handler) http.Handler {
	if perSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	lmt := tollbooth.NewLimiter(perSecond, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetBurst(burst)
	lmt.SetMethods([]string{http.MethodPost})
	lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	lmt.SetMessage(`{"message":"Troppe richieste, riprova più tardi"}`)
	lmt.SetMessageContentType("application/json")
	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}

// Deps is everything the HTTP surface needs. Handlers are built by main.
type Deps struct {
	Logger  *zap.SugaredLogger
	IDs     *utilities.IDNode
	Auth    *auth.AuthService
	Login   *auth.Handler
	Users   *user.Handler
	Lists   *giftlist.Handler
	Webhook *webhook.Handler
	Catalog *shopify.Handler
	Stats   *webhook.Stats

	AuthRateLimit float64
	AuthBurst     int
	// GuardListWrites puts list and item mutations behind a bearer session.
	GuardListWrites bool
}

type healthResponse struct {
	Status  string                `json:"status"`
	Webhook webhook.StatsSnapshot `json:"webhook"`
}

// RegisterRoutes mounts every route under /api on a http.ServeMux.
func RegisterRoutes(d Deps) http.Handler {
	mux := http.NewServeMux()
	logger := d.Logger

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		res := healthResponse{Status: "ok"}
		if d.Stats != nil {
			res.Webhook = d.Stats.Snapshot()
		}
		httpx.WriteJSON(w, http.StatusOK, res)
	})

	// auth
	burst := d.AuthBurst
	if burst <= 0 {
		burst = 5
	}
	mux.Handle("/api/auth", RateLimitMiddleware(d.AuthRateLimit, burst)(d.Login))

	// admin users
	admin := auth.RequireAdmin(d.Auth, logger)
	mux.Handle("GET /api/admin/users", admin(http.HandlerFunc(d.Users.List)))
	mux.Handle("POST /api/admin/users", admin(http.HandlerFunc(d.Users.Create)))
	mux.Handle("PUT /api/admin/users/{id}", admin(http.HandlerFunc(d.Users.Update)))
	mux.Handle("DELETE /api/admin/users/{id}", admin(http.HandlerFunc(d.Users.Delete)))

	// gift lists; creation stays public for the storefront
	write := func(h http.HandlerFunc) http.Handler { return h }
	if d.GuardListWrites {
		session := auth.RequireSession(d.Auth, logger)
		write = func(h http.HandlerFunc) http.Handler { return session(h) }
	}
	mux.HandleFunc("GET /api/gift_lists", d.Lists.List)
	mux.HandleFunc("POST /api/gift_lists", d.Lists.Create)
	mux.HandleFunc("GET /api/gift_lists/{id}", d.Lists.Get)
	mux.Handle("PUT /api/gift_lists/{id}", write(d.Lists.Update))
	mux.Handle("DELETE /api/gift_lists/{id}", write(d.Lists.Delete))
	mux.Handle("POST /api/gift_lists/{id}/items", write(d.Lists.AddItem))
	mux.Handle("PUT /api/gift_lists/{id}/items", write(d.Lists.ReplaceItems))
	mux.Handle("DELETE /api/gift_lists/{id}/items/{itemId}", write(d.Lists.RemoveItem))
	mux.HandleFunc("GET /api/public/gift/{publicUrl}", d.Lists.GetPublic)
	mux.HandleFunc("GET /api/popular-products", d.Lists.PopularProducts)

	// catalog proxy
	mux.HandleFunc("GET /api/products", d.Catalog.Products)
	mux.HandleFunc("GET /api/collections", d.Catalog.Collections)

	// commerce platform webhook
	mux.Handle("POST /api/webhooks/orders-create", d.Webhook)

	return LoggingMiddleware(logger, d.IDs)(SecurityHeadersMiddleware()(mux))
}
