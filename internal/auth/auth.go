package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/metrics"
	"github.com/bayardlab/bayard-gateway/internal/ratelimit"
)

// CredentialStore answers whether an API key is registered.
type CredentialStore interface {
	KeyExists(ctx context.Context, key string) (bool, error)
}

// HeaderFunc reads a request header by name. Kept as a function so the
// resolver chain can be exercised without an HTTP request.
type HeaderFunc func(name string) string

// Resolver produces a credential candidate, or "" when it has none.
type Resolver func(get HeaderFunc) string

// SharedKeyResolver yields the server-side configured key, if any.
func SharedKeyResolver(sharedKey string) Resolver {
	return func(HeaderFunc) string { return sharedKey }
}

// HeaderResolver yields the value of the dedicated X-API-Key header.
func HeaderResolver() Resolver {
	return func(get HeaderFunc) string { return get("X-API-Key") }
}

// BearerResolver yields the Authorization header value with the
// "Bearer" prefix stripped.
func BearerResolver() Resolver {
	return func(get HeaderFunc) string {
		header := get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer") {
			return ""
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
}

// Resolve tries each resolver in order; the first non-empty candidate
// wins. An empty result means the server has no way to identify the
// caller, which is a configuration fault rather than an auth failure.
func Resolve(resolvers []Resolver, get HeaderFunc) string {
	for _, r := range resolvers {
		if candidate := r(get); candidate != "" {
			return candidate
		}
	}
	return ""
}

// Gate is the pre-routing middleware: credential resolution, registry
// lookup, then rate limiting. Exempt paths skip every check.
type Gate struct {
	resolvers []Resolver
	store     CredentialStore
	limiter   *ratelimit.Limiter
	exempt    map[string]bool
	logger    *zap.Logger
}

type GateConfig struct {
	SharedKey   string
	Store       CredentialStore
	Limiter     *ratelimit.Limiter
	ExemptPaths []string
	Logger      *zap.Logger
}

func NewGate(cfg GateConfig) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	exempt := make(map[string]bool, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = true
	}

	return &Gate{
		resolvers: []Resolver{
			SharedKeyResolver(cfg.SharedKey),
			HeaderResolver(),
			BearerResolver(),
		},
		store:   cfg.Store,
		limiter: cfg.Limiter,
		exempt:  exempt,
		logger:  cfg.Logger,
	}
}

func (g *Gate) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if g.exempt[c.Path()] {
			return c.Next()
		}

		credential := Resolve(g.resolvers, func(name string) string { return c.Get(name) })
		if credential == "" {
			g.logger.Error("API key not found in request headers or server configuration",
				zap.String("path", c.Path()),
			)
			metrics.AuthRejections.WithLabelValues("unconfigured").Inc()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "API key not configured",
			})
		}

		exists, err := g.store.KeyExists(c.Context(), credential)
		if err != nil {
			g.logger.Error("Credential lookup failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to validate API key",
			})
		}
		if !exists {
			g.logger.Warn("Rejected unregistered API key", zap.String("path", c.Path()))
			metrics.AuthRejections.WithLabelValues("unregistered").Inc()
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		if !g.limiter.Admit(credential) {
			metrics.RateLimitRejections.Inc()
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded",
			})
		}

		return c.Next()
	}
}
