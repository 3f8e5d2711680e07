// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/templates/portal-gateway/internal/config"
	"github.com/carterperez-dev/templates/portal-gateway/internal/core"
)

type Handler struct {
	redisStats  func() *redis.PoolStats
	redisPing   func(ctx context.Context) error
	backendPing func(ctx context.Context) error
	routes      config.RoutesConfig
	backendURL  string
	startedAt   time.Time
}

type HandlerConfig struct {
	RedisStats  func() *redis.PoolStats
	RedisPing   func(ctx context.Context) error
	BackendPing func(ctx context.Context) error
	Routes      config.RoutesConfig
	BackendURL  string
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		redisStats:  cfg.RedisStats,
		redisPing:   cfg.RedisPing,
		backendPing: cfg.BackendPing,
		routes:      cfg.Routes,
		backendURL:  cfg.BackendURL,
		startedAt:   time.Now(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Get("/gate", h.GetGateConfig)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	core.OK(w, SystemStatsResponse{
		Backend: BackendStatus{
			URL:     h.backendURL,
			Healthy: pingOK(ctx, h.backendPing),
		},
		Redis: RedisStatus{
			Healthy: pingOK(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntime(h.startedAt),
	})
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntime(h.startedAt))
}

// GetGateConfig exposes the route table the access gate is enforcing.
func (h *Handler) GetGateConfig(w http.ResponseWriter, r *http.Request) {
	core.OK(w, GateConfigResponse{
		AdminPrefix:  h.routes.AdminPrefix,
		OwnerPrefix:  h.routes.OwnerPrefix,
		Login:        h.routes.Login,
		Subscription: h.routes.Subscription,
		AddProperty:  h.routes.AddProperty,
		PropertyList: h.routes.PropertyList,
	})
}

func pingOK(ctx context.Context, ping func(context.Context) error) bool {
	if ping == nil {
		return false
	}
	return ping(ctx) == nil
}

func readRuntime(startedAt time.Time) RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
		Uptime:       time.Since(startedAt).Round(time.Second).String(),
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

type SystemStatsResponse struct {
	Backend BackendStatus `json:"backend"`
	Redis   RedisStatus   `json:"redis"`
	Runtime RuntimeStats  `json:"runtime"`
}

type BackendStatus struct {
	URL     string `json:"url"`
	Healthy bool   `json:"healthy"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
	Uptime       string `json:"uptime"`
}

type GateConfigResponse struct {
	AdminPrefix  string `json:"admin_prefix"`
	OwnerPrefix  string `json:"owner_prefix"`
	Login        string `json:"login"`
	Subscription string `json:"subscription"`
	AddProperty  string `json:"add_property"`
	PropertyList string `json:"property_list"`
}
