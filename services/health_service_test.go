package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NomadCrew/nomad-crew-ocr/internal/cache"
	"github.com/NomadCrew/nomad-crew-ocr/internal/ocr"
	"github.com/NomadCrew/nomad-crew-ocr/types"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecognizer struct {
	fakeRecognizer
	status ocr.SchedulerStatus
}

func (s *stubRecognizer) Status() ocr.SchedulerStatus {
	return s.status
}

func runningPool() *stubRecognizer {
	return &stubRecognizer{status: ocr.SchedulerStatus{Initialized: true, WorkerCount: 4, ActiveWorkers: 1}}
}

func TestNewHealthService(t *testing.T) {
	service := NewHealthService(nil, runningPool(), "1.0.0")

	assert.NotNil(t, service)
	assert.Equal(t, "1.0.0", service.version)
	assert.NotNil(t, service.log)
	assert.IsType(t, cache.NoopCache{}, service.cache)
	assert.True(t, time.Since(service.startTime) < time.Second)
}

func TestHealthService_CheckHealth(t *testing.T) {
	tests := []struct {
		name           string
		pool           ocr.SchedulerStatus
		setupRedis     func(redismock.ClientMock)
		expectedStatus types.HealthStatus
		expectedCache  types.HealthStatus
		expectedPool   types.HealthStatus
	}{
		{
			name: "all healthy",
			pool: ocr.SchedulerStatus{Initialized: true, WorkerCount: 4, QueueDepth: 2, ActiveWorkers: 4},
			setupRedis: func(m redismock.ClientMock) {
				m.ExpectPing().SetVal("PONG")
			},
			expectedStatus: types.HealthStatusUp,
			expectedCache:  types.HealthStatusUp,
			expectedPool:   types.HealthStatusUp,
		},
		{
			name: "cache down degrades",
			pool: ocr.SchedulerStatus{Initialized: true, WorkerCount: 4},
			setupRedis: func(m redismock.ClientMock) {
				m.ExpectPing().SetErr(errors.New("connection refused"))
			},
			expectedStatus: types.HealthStatusDegraded,
			expectedCache:  types.HealthStatusDown,
			expectedPool:   types.HealthStatusUp,
		},
		{
			name: "pool not initialized",
			pool: ocr.SchedulerStatus{Initialized: false, WorkerCount: 4},
			setupRedis: func(m redismock.ClientMock) {
				m.ExpectPing().SetErr(errors.New("connection refused"))
			},
			expectedStatus: types.HealthStatusDown,
			expectedCache:  types.HealthStatusDown,
			expectedPool:   types.HealthStatusDown,
		},
		{
			name: "queue backlog",
			pool: ocr.SchedulerStatus{Initialized: true, WorkerCount: 2, QueueDepth: 17, ActiveWorkers: 2},
			setupRedis: func(m redismock.ClientMock) {
				m.ExpectPing().SetVal("PONG")
			},
			expectedStatus: types.HealthStatusDegraded,
			expectedCache:  types.HealthStatusUp,
			expectedPool:   types.HealthStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			tt.setupRedis(mock)

			service := NewHealthService(cache.NewRedisCache(db, "ocr:result:"), &stubRecognizer{status: tt.pool}, "1.2.3")
			health := service.CheckHealth(context.Background())

			assert.Equal(t, tt.expectedStatus, health.Status)
			assert.Equal(t, tt.expectedCache, health.Services.Cache.Status)
			assert.Equal(t, tt.expectedPool, health.Services.OCR.Scheduler.Status)
			assert.Equal(t, tt.pool.Initialized, health.Services.OCR.Initialized)
			assert.Equal(t, tt.pool.WorkerCount, health.Services.OCR.Workers)
			assert.Equal(t, tt.pool.QueueDepth, health.Services.OCR.Scheduler.QueueDepth)
			assert.Nil(t, health.Services.Archive)
			assert.Equal(t, "1.2.3", health.Version)
			assert.NotEmpty(t, health.Timestamp)
			assert.NotEmpty(t, health.Uptime)

			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHealthService_Archive(t *testing.T) {
	service := NewHealthService(nil, runningPool(), "1.0.0")

	service.SetArchive(&recordingArchive{})
	health := service.CheckHealth(context.Background())
	require.NotNil(t, health.Services.Archive)
	assert.Equal(t, types.HealthStatusUp, health.Services.Archive.Status)
	assert.Equal(t, types.HealthStatusUp, health.Status)

	service.SetArchive(&recordingArchive{err: errors.New("forbidden")})
	health = service.CheckHealth(context.Background())
	assert.Equal(t, types.HealthStatusDown, health.Services.Archive.Status)
	assert.Equal(t, types.HealthStatusDegraded, health.Status)
}
