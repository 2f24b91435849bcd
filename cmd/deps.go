package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/facegate/internal/attendance"
	"github.com/kozaktomas/facegate/internal/config"
	"github.com/kozaktomas/facegate/internal/gallery"
	"github.com/kozaktomas/facegate/internal/gallery/postgres"
	"github.com/kozaktomas/facegate/internal/liveness"
	"github.com/kozaktomas/facegate/internal/recognition"
	"github.com/kozaktomas/facegate/internal/registry"
	"github.com/kozaktomas/facegate/internal/vision"
)

// deps holds the initialized components shared by the commands.
type deps struct {
	cfg      *config.Config
	registry *registry.Registry
	gallery  *gallery.Gallery
	manager  *attendance.Manager
	pipeline *recognition.Pipeline
	liveness *liveness.Detector
	pool     *postgres.Pool // nil unless DATABASE_URL is set
}

// initDeps wires the component graph from configuration. When DATABASE_URL
// is set the pgvector embedding cache is attached to the gallery.
func initDeps(ctx context.Context) (*deps, error) {
	cfg := config.Load()

	reg, err := registry.Open(cfg.Storage.EmployeeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open employee registry: %w", err)
	}

	detector := vision.NewClient(cfg.FaceService.URL)
	gal := gallery.New(cfg.Storage.KnownFacesDir, cfg.Rules.Match.Tolerance, detector)
	if cfg.Gallery.HNSW {
		gal.EnableHNSW()
	}

	var pool *postgres.Pool
	if cfg.Database.URL != "" {
		pool, err = postgres.NewPool(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to embedding cache: %w", err)
		}
		if err := pool.Migrate(ctx, cfg.FaceService.Dim); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate embedding cache: %w", err)
		}
		gal.SetCache(postgres.NewEmbeddingCache(pool))
		fmt.Println("Embedding cache enabled (PostgreSQL)")
	}

	manager := attendance.NewManager(
		attendance.NewLedger(cfg.Storage.AttendanceDir),
		reg,
		time.Duration(cfg.Rules.Attendance.CooldownSeconds)*time.Second,
		time.Duration(cfg.Rules.Attendance.MinCheckoutMinutes)*time.Minute,
	)

	pipeline := recognition.NewPipeline(detector, gal, cfg.Rules.Match.Downscale)
	gate := liveness.New(
		cfg.Rules.Liveness.EARThreshold,
		cfg.Rules.Liveness.EARConsecFrames,
		time.Duration(cfg.Rules.Liveness.BlinkWindowSeconds)*time.Second,
	)

	return &deps{
		cfg:      cfg,
		registry: reg,
		gallery:  gal,
		manager:  manager,
		pipeline: pipeline,
		liveness: gate,
		pool:     pool,
	}, nil
}

// close releases held resources.
func (d *deps) close() {
	if d.pool != nil {
		d.pool.Close()
	}
}
