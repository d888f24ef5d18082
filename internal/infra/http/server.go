package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gatekeeper/internal/config"
	"gatekeeper/internal/domain"
	"gatekeeper/internal/infra/auth/apikey"
	"gatekeeper/internal/infra/auth/basic"
	"gatekeeper/internal/infra/auth/bearer"
	"gatekeeper/internal/infra/cachemem"
	"gatekeeper/internal/infra/db"
	"gatekeeper/internal/infra/policyopa"
	"gatekeeper/internal/infra/ratelimit"
	"gatekeeper/internal/spec"
	"gatekeeper/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	doc    *spec.Document
	engine *usecase.Engine

	items  domain.ItemStore
	orders domain.OrderStore

	policy *policyopa.Engine

	rateLimiter         domain.RateLimiter
	rateLimitFailClosed bool
}

// NewServer wires the full stack from configuration: policy table from the
// Swagger document, validators over the gorm stores, optional Rego gate,
// optional rate limiter.
func NewServer(cfg config.Config, store *db.Store) (*Server, error) {
	doc, err := spec.Parse(cfg.SpecPath)
	if err != nil {
		return nil, err
	}

	users := db.NewUserRepository(store.DB)
	var keys domain.ResellerKeyStore = db.NewResellerKeyRepository(store.DB)
	if cfg.APIKeyCacheTTLSeconds > 0 {
		keys = cachemem.NewKeyCache(keys, time.Duration(cfg.APIKeyCacheTTLSeconds)*time.Second)
	}

	validators, err := buildValidators(cfg, doc, users, keys)
	if err != nil {
		return nil, err
	}
	engine, err := usecase.NewEngine(doc.Schemes, validators, usecase.WithLogf(log.Printf))
	if err != nil {
		return nil, err
	}

	var policy *policyopa.Engine
	if cfg.PolicyBundlePath != "" {
		policy, err = policyopa.NewEngineFromPath(context.Background(), cfg.PolicyBundlePath)
		if err != nil {
			return nil, fmt.Errorf("load policy bundle: %w", err)
		}
	}

	var limiter domain.RateLimiter
	if rlPolicy := rateLimitPolicy(cfg, doc); rlPolicy.Enabled() {
		if cfg.RedisAddr != "" {
			limiter, err = ratelimit.NewRedisLimiter(rlPolicy, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, nil)
			if err != nil {
				return nil, err
			}
		} else {
			limiter = ratelimit.NewMemoryLimiter(rlPolicy, ratelimit.MemoryLimiterConfig{MaxKeys: cfg.RateLimitMaxKeys})
		}
	}

	return newServer(cfg, ServerDeps{
		Document:    doc,
		Engine:      engine,
		Items:       db.NewItemRepository(store.DB),
		Orders:      db.NewOrderRepository(store.DB),
		Policy:      policy,
		RateLimiter: limiter,
	}), nil
}

// ServerDeps lets tests assemble a server from fakes.
type ServerDeps struct {
	Document    *spec.Document
	Engine      *usecase.Engine
	Items       domain.ItemStore
	Orders      domain.OrderStore
	Policy      *policyopa.Engine
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	return newServer(cfg, deps)
}

func newServer(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:                 cfg,
		r:                   r,
		doc:                 deps.Document,
		engine:              deps.Engine,
		items:               deps.Items,
		orders:              deps.Orders,
		policy:              deps.Policy,
		rateLimiter:         deps.RateLimiter,
		rateLimitFailClosed: cfg.RateLimitFailClosed,
	}
	s.routes()
	return s
}

// rateLimitPolicy derives limiter budgets from configuration: one default
// rule for every operation, with mutating operations optionally metered
// tighter via RATE_LIMIT_WRITE_REQUESTS.
func rateLimitPolicy(cfg config.Config, doc *spec.Document) ratelimit.Policy {
	window := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	policy := ratelimit.Policy{
		Default: ratelimit.Rule{Requests: cfg.RateLimitRequests, Window: window},
	}
	if cfg.RateLimitWriteRequests > 0 {
		policy.Operations = make(map[domain.RouteKey]ratelimit.Rule)
		for key := range doc.Policies {
			if key.Method == http.MethodGet || key.Method == http.MethodHead {
				continue
			}
			policy.Operations[key] = ratelimit.Rule{Requests: cfg.RateLimitWriteRequests, Window: window}
		}
	}
	return policy
}

func buildValidators(cfg config.Config, doc *spec.Document, users domain.UserStore, keys domain.ResellerKeyStore) (map[string]domain.SchemeValidator, error) {
	var tokenValidator *bearer.Validator
	validators := make(map[string]domain.SchemeValidator, len(doc.Schemes))
	for _, scheme := range doc.Schemes {
		switch scheme.Kind {
		case domain.SchemeBasic:
			validators[scheme.Name] = basic.NewValidator(users)
		case domain.SchemeAPIKey:
			validators[scheme.Name] = apikey.NewValidator(keys)
		case domain.SchemeBearer:
			if tokenValidator == nil {
				var err error
				tokenValidator, err = bearer.NewValidator(bearer.Config{
					Issuer:     cfg.JWTIssuer,
					Audience:   cfg.JWTAudience,
					HMACSecret: cfg.JWTHMACSecret,
					JWKSURL:    cfg.JWTJWKSURL,
					ClockSkew:  time.Duration(cfg.JWTClockSkewSecs) * time.Second,
					ScopeClaim: cfg.JWTScopeClaim,
				})
				if err != nil {
					return nil, fmt.Errorf("scheme %s: %w", scheme.Name, err)
				}
			}
			validators[scheme.Name] = tokenValidator
		}
	}
	return validators, nil
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.r.Group(s.doc.BasePath)
	api.GET("/items", s.secured(domain.RouteKey{Method: "GET", Path: "/items"}, s.listItems))
	api.POST("/order/add", s.secured(domain.RouteKey{Method: "POST", Path: "/order/add"}, s.addOrder))
	api.GET("/order/:orderID", s.secured(domain.RouteKey{Method: "GET", Path: "/order/{orderID}"}, s.getOrder))
	api.GET("/orders", s.secured(domain.RouteKey{Method: "GET", Path: "/orders"}, s.listOrders))
}

func (s *Server) Run() error {
	log.Printf("listening on %s", s.cfg.HTTPAddr)
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
