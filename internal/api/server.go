package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// NewServer creates an HTTP server with all routes configured. metrics may be nil.
func NewServer(port string, handler *Handler, metrics http.Handler, adminAPIKey string) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/baskets", handler.ListBaskets)
	mux.HandleFunc("GET /api/v1/baskets/{basket}/units", handler.GetUnits)
	mux.HandleFunc("GET /api/v1/baskets/{basket}/adjustments", handler.ListAdjustments)
	mux.HandleFunc("GET /api/v1/operators", handler.ListOperators)

	protect := func(h http.HandlerFunc) http.Handler {
		if adminAPIKey == "" {
			return h
		}
		return requireAuth(adminAPIKey, h)
	}
	mux.Handle("POST /api/v1/baskets/{basket}/adjust", protect(handler.Adjust))
	mux.Handle("POST /api/v1/baskets/{basket}/initialize", protect(handler.Initialize))
	mux.Handle("POST /api/v1/operators", protect(handler.AddOperator))
	mux.Handle("DELETE /api/v1/operators/{address}", protect(handler.RemoveOperator))

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func requireAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if !strings.HasPrefix(auth, "Bearer ") || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
