package rest

import (
	"net/http"
	"strings"
	"time"

	"vidyavichar/internal/metrics"
	"vidyavichar/internal/service"
	"vidyavichar/internal/transport/rest/handler"
	"vidyavichar/internal/transport/rest/middleware"
	"vidyavichar/internal/transport/ws"

	"github.com/gorilla/mux"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService     *service.AuthService
	SessionService  *service.SessionService
	QuestionService *service.QuestionService
	WSHub           *ws.Hub
	Metrics         *metrics.Metrics
	AllowedOrigins  string
	RequestTimeout  time.Duration
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(c.SessionService)
	questionHandler := handler.NewQuestionHandler(c.QuestionService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.AllowedOrigins)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	r.Use(corsMiddleware(c.AllowedOrigins))
	r.Use(middleware.Observe(c.Metrics))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", c.Metrics.Handler()).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// WebSocket (token in query param)
	v1.HandleFunc("/ws", wsHandler.Serve).Methods("GET")

	timeout := c.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api := v1.NewRoute().Subrouter()
	api.Use(middleware.Timeout(timeout))
	api.Use(authMW.RequireAuth)

	api.HandleFunc("/sessions", sessionHandler.Start).Methods("POST", "OPTIONS")
	api.HandleFunc("/sessions/{id}/end", sessionHandler.End).Methods("PATCH", "OPTIONS")
	api.HandleFunc("/courses/{courseId}/sessions", sessionHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/courses/{courseId}/sessions/active", sessionHandler.Active).Methods("GET", "OPTIONS")

	api.HandleFunc("/courses/{courseId}/questions", questionHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/courses/{courseId}/questions", questionHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/courses/{courseId}/questions/clear", questionHandler.Clear).Methods("POST", "OPTIONS")
	api.HandleFunc("/questions/mine", questionHandler.Mine).Methods("GET", "OPTIONS")
	api.HandleFunc("/questions/{id}", questionHandler.Update).Methods("PATCH", "OPTIONS")
	api.HandleFunc("/questions/{id}", questionHandler.Delete).Methods("DELETE", "OPTIONS")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	allowed := map[string]bool{}
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowed["*"] {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
