package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/AlexVillalobosJara/ECommerce-sub001/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type middlewareChain []func(http.Handler) http.Handler

func (c middlewareChain) apply(r chi.Router) {
	for _, mw := range c {
		if mw != nil {
			r.Use(mw)
		}
	}
}

// routeGroup is one mounted prefix under /api/v1. Tenant scoped groups get
// TenantScope before their own middleware.
type routeGroup struct {
	registrar   RouteRegistrar
	middlewares middlewareChain
	scoped      bool
}

type routerConfig struct {
	global middlewareChain
	health *HealthHandlers
	groups map[string]*routeGroup
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second

	groupCheckout = "/checkout"
	groupOrders   = "/orders"
	groupInternal = "/internal"
)

// mountOrder fixes the registration order so route tables are stable.
var mountOrder = []string{groupCheckout, groupOrders, groupInternal}

// NewRouter builds the chi router: health probes at the root and the checkout,
// orders and internal groups under /api/v1. A group without a registrar
// answers 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		global: middlewareChain{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(requestTimeout),
		},
		groups: map[string]*routeGroup{
			groupCheckout: {scoped: true},
			groupOrders:   {scoped: true},
			groupInternal: {},
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	cfg.global.apply(r)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(apiPrefix, func(api chi.Router) {
		for _, prefix := range mountOrder {
			group := cfg.groups[prefix]
			api.Route(prefix, func(sub chi.Router) {
				if group.scoped {
					sub.Use(TenantScope())
				}
				group.middlewares.apply(sub)
				if group.registrar == nil {
					notImplemented(sub, prefix)
					return
				}
				group.registrar(sub)
			})
		}
	})
	return r
}

// WithMiddlewares appends global middleware, run before routing.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.global = append(cfg.global, mw...)
	}
}

// WithHealthHandlers overrides the handlers behind /healthz and /readyz.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithCheckoutRoutes sets the registrar for /checkout.
func WithCheckoutRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.groups[groupCheckout].registrar = reg
	}
}

// WithOrderRoutes sets the registrar for /orders.
func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.groups[groupOrders].registrar = reg
	}
}

// WithInternalRoutes sets the registrar for /internal.
func WithInternalRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.groups[groupInternal].registrar = reg
	}
}

// WithInternalMiddlewares guards the /internal group, typically with OIDC.
func WithInternalMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		group := cfg.groups[groupInternal]
		group.middlewares = append(group.middlewares, mw...)
	}
}

func notImplemented(r chi.Router, prefix string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", prefix[1:]), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
	r.NotFound(handler)
	r.MethodNotAllowed(handler)
}
