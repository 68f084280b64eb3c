package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/certprep/certprep-backend/internal/config"
	"github.com/certprep/certprep-backend/internal/response"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler reports process health and dependency reachability.
type SystemHandler struct {
	db        Pinger
	rdb       *redis.Client
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a new SystemHandler. rdb may be nil when Redis is
// not configured.
func NewSystemHandler(db Pinger, rdb *redis.Client, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthReport struct {
	Status    string            `json:"status"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
	GoVersion string            `json:"go_version"`

	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	NumGC      uint32 `json:"num_gc"`

	// StatsQueue is the backlog of question outcomes awaiting persistence.
	StatsQueue *int64 `json:"stats_queue,omitempty"`
}

// Health godoc
// GET /health
// Returns 200 when every configured dependency answers, 503 otherwise.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := healthReport{
		Status:     "ok",
		Uptime:     formatDuration(time.Since(h.startTime)),
		Checks:     map[string]string{},
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		NumGC:      mem.NumGC,
	}

	if h.db != nil {
		report.Checks["postgres"] = h.check(ctx, "postgres", h.db.Ping)
	}
	if h.rdb != nil {
		report.Checks["redis"] = h.check(ctx, "redis", func(ctx context.Context) error {
			return h.rdb.Ping(ctx).Err()
		})
		if n, err := h.rdb.LLen(ctx, config.WorkerKey.PersistQuestionStatsQueue).Result(); err == nil {
			report.StatsQueue = &n
		}
	}

	status := http.StatusOK
	for _, result := range report.Checks {
		if result != "ok" {
			report.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	response.Success(c, status, report)
}

func (h *SystemHandler) check(ctx context.Context, name string, ping func(context.Context) error) string {
	if err := ping(ctx); err != nil {
		h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
		return "unreachable"
	}
	return "ok"
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
