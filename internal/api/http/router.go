package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/api/service"
	"github.com/aussiebroadwan/gatekeep/internal/api/store"
	"github.com/aussiebroadwan/gatekeep/pkg/httpx"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/slogx"

	_ "github.com/aussiebroadwan/gatekeep/api/docs" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	gate         *httpx.Gate
	signer       jwtx.Signer
	limits       httpx.RateLimitProfiles
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	TokenService    *service.TokenService
	UserService     *service.UserService
	CatFactsService *service.CatFactsService

	// Optional.
	Versions VersionStatus
	Metrics  http.Handler
}

func NewRouter(
	gate *httpx.Gate,
	signer jwtx.Signer,
	limits httpx.RateLimitProfiles,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		gate:         gate,
		signer:       signer,
		limits:       limits,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recoverer(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerMisc()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Gatekeep API
//	@version		0.1.0
//	@description	User registration and HS256 token issuance with version-based revocation.
//	@description
//	@description				Every token carries the user's version; exchanging a refresh token bumps it and invalidates all earlier tokens.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/gatekeep
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
//
//	@securityDefinitions.basic	BasicAuth
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	h := &UserHandler{
		UserService:  r.UserService,
		TokenService: r.TokenService,
	}

	// POST /user - sign-up is anonymous, strict limit by IP
	r.Mux.Handle("POST /user",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitByIP(r.limits.Strict),
			httpx.AllowAnonymous(),
			httpx.AuthnMiddleware(r.gate),
		),
	)

	// POST /user/login - Basic credentials, strict limit by IP + username
	r.Mux.Handle("POST /user/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndUsername(r.limits.Strict),
			httpx.BasicAuthMiddleware(r.UserService.CheckCredentials),
		),
	)

	r.Mux.Handle("GET /user",
		httpx.Chain(http.HandlerFunc(h.HandleRead),
			httpx.AuthnMiddleware(r.gate),
			httpx.RateLimitByPrincipal(r.limits.Lenient),
		),
	)

	// POST /user/generate-new-token - moderate limit by principal
	r.Mux.Handle("POST /user/generate-new-token",
		httpx.Chain(http.HandlerFunc(h.HandleGenerateNewToken),
			httpx.AuthnMiddleware(r.gate),
			httpx.RateLimitByPrincipal(r.limits.Moderate),
		),
	)
}

func (r *Router) registerMisc() {
	h := &CatFactsHandler{CatFactsService: r.CatFactsService}

	r.Mux.Handle("GET /misc/cat-facts",
		httpx.Chain(h,
			httpx.RateLimitByIP(r.limits.Public),
			httpx.AllowAnonymous(),
			httpx.AuthnMiddleware(r.gate),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - public limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer, r.Versions),
			httpx.RateLimitByIP(r.limits.Public),
		),
	)

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics)
	}
}
