package services

import (
	"context"
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/internal/cache"
	"github.com/NomadCrew/nomad-crew-ocr/logger"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"go.uber.org/zap"
)

// backlogPerWorker is the queue length per worker above which the pool is
// reported as degraded.
const backlogPerWorker = 8

type HealthService struct {
	cache      cache.Cache
	recognizer Recognizer
	archive    DocumentArchive
	version    string
	startTime  time.Time
	log        *zap.SugaredLogger
}

func NewHealthService(c cache.Cache, recognizer Recognizer, version string) *HealthService {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &HealthService{
		cache:      c,
		recognizer: recognizer,
		version:    version,
		startTime:  time.Now(),
		log:        logger.GetLogger().Named("health"),
	}
}

// SetArchive adds the document archive to the checked components.
func (h *HealthService) SetArchive(a DocumentArchive) {
	h.archive = a
}

// CheckHealth reports DOWN when the recognition pool cannot take work. Cache
// and archive problems only degrade the service.
func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	overallStatus := types.HealthStatusUp

	ocrHealth := h.checkOCR()
	if ocrHealth.Scheduler.Status == types.HealthStatusDown {
		overallStatus = types.HealthStatusDown
	} else if ocrHealth.Scheduler.Status == types.HealthStatusDegraded {
		overallStatus = types.HealthStatusDegraded
	}

	cacheStatus := h.checkCache(ctx)
	if cacheStatus.Status != types.HealthStatusUp && overallStatus != types.HealthStatusDown {
		overallStatus = types.HealthStatusDegraded
	}

	services := types.HealthServices{Cache: cacheStatus, OCR: ocrHealth}
	if h.archive != nil {
		archiveStatus := h.checkArchive(ctx)
		services.Archive = &archiveStatus
		if archiveStatus.Status != types.HealthStatusUp && overallStatus != types.HealthStatusDown {
			overallStatus = types.HealthStatusDegraded
		}
	}

	return types.HealthCheck{
		Status:    overallStatus,
		Services:  services,
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
}

func (h *HealthService) checkOCR() types.OCRHealth {
	status := h.recognizer.Status()
	scheduler := types.SchedulerHealth{
		Status:        types.HealthStatusUp,
		QueueDepth:    status.QueueDepth,
		ActiveWorkers: status.ActiveWorkers,
		Replacements:  status.Replacements,
	}

	switch {
	case !status.Initialized:
		scheduler.Status = types.HealthStatusDown
	case status.WorkerCount > 0 && status.QueueDepth > status.WorkerCount*backlogPerWorker:
		h.log.Warnw("Recognition queue backlog", "queueDepth", status.QueueDepth, "workers", status.WorkerCount)
		scheduler.Status = types.HealthStatusDegraded
	}

	return types.OCRHealth{
		Initialized: status.Initialized,
		Workers:     status.WorkerCount,
		Scheduler:   scheduler,
	}
}

func (h *HealthService) checkCache(ctx context.Context) types.HealthComponent {
	if err := h.cache.Ping(ctx); err != nil {
		h.log.Errorw("Cache health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Cache connection failed",
		}
	}

	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}

func (h *HealthService) checkArchive(ctx context.Context) types.HealthComponent {
	if err := h.archive.Ping(ctx); err != nil {
		h.log.Errorw("Archive health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Archive bucket unreachable",
		}
	}

	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}
