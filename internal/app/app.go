package app

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"vidyavichar/internal/cache"
	"vidyavichar/internal/config"
	"vidyavichar/internal/metrics"
	"vidyavichar/internal/repository"
	"vidyavichar/internal/service"
	"vidyavichar/internal/transport/rest"
	"vidyavichar/internal/transport/ws"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Stores are the durable collaborators injected into the registry and the question store
type Stores struct {
	SessionRepo  repository.SessionRepo
	QuestionRepo repository.QuestionRepo
	CourseRepo   repository.CourseRepo
}

// MongoStores builds the Mongo-backed stores
func MongoStores(db *mongo.Database) Stores {
	return Stores{
		SessionRepo:  repository.NewSessionRepo(db),
		QuestionRepo: repository.NewQuestionRepo(db),
		CourseRepo:   repository.NewCourseRepo(db),
	}
}

// MemoryStores builds process-local stores
func MemoryStores() Stores {
	return Stores{
		SessionRepo:  repository.NewMemorySessionRepo(),
		QuestionRepo: repository.NewMemoryQuestionRepo(),
		CourseRepo:   repository.NewMemoryCourseRepo(),
	}
}

// App wires the board together
type App struct {
	Stores    Stores
	Auth      *service.AuthService
	Sessions  *service.SessionService
	Questions *service.QuestionService
	Hub       *ws.Hub
	Relay     *ws.RedisRelay
	Metrics   *metrics.Metrics
	Handler   http.Handler
}

// New builds services, the hub and the router. rdb may be nil, in which case the
// active-session cache and the distributed lock are skipped and events stay local.
func New(cfg *config.Config, stores Stores, rdb *redis.Client) (*App, error) {
	if stores.SessionRepo == nil || stores.QuestionRepo == nil || stores.CourseRepo == nil {
		return nil, fmt.Errorf("app: all stores are required")
	}
	if cfg.RealtimeRelay == config.RelayRedis && rdb == nil {
		return nil, fmt.Errorf("app: redis relay requires a redis client")
	}

	m := metrics.New()
	hub := ws.NewHub(m)

	var (
		sessionCache cache.SessionCache
		locker       service.Locker = service.NewLocalLocker()
		broadcaster  service.Broadcaster = hub
		relay        *ws.RedisRelay
	)
	if rdb != nil {
		sessionCache = cache.NewSessionCache(rdb, cfg.ActiveSessionCacheTTL)
		locker = cache.NewRedisLocker(rdb)
		if cfg.RealtimeRelay == config.RelayRedis {
			relay = ws.NewRedisRelay(rdb, hub)
			broadcaster = relay
		}
	}

	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.JWTIssuer)
	sessionSvc := service.NewSessionService(stores.SessionRepo, stores.CourseRepo, sessionCache, locker)
	questionSvc := service.NewQuestionService(stores.QuestionRepo, stores.CourseRepo, sessionSvc)

	sessionSvc.SetBroadcaster(broadcaster)
	questionSvc.SetBroadcaster(broadcaster)

	router := rest.NewRouter(&rest.Container{
		AuthService:     authSvc,
		SessionService:  sessionSvc,
		QuestionService: questionSvc,
		WSHub:           hub,
		Metrics:         m,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RequestTimeout:  cfg.RequestTimeout,
	})

	return &App{
		Stores:    stores,
		Auth:      authSvc,
		Sessions:  sessionSvc,
		Questions: questionSvc,
		Hub:       hub,
		Relay:     relay,
		Metrics:   m,
		Handler:   router,
	}, nil
}

// RunRelay blocks delivering relayed events until ctx is done. Without a relay it
// returns immediately.
func (a *App) RunRelay(ctx context.Context) error {
	if a.Relay == nil {
		return nil
	}
	log.Println("Realtime relay: redis")
	return a.Relay.Run(ctx)
}
