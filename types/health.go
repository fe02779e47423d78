package types

type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "UP"
	HealthStatusDown     HealthStatus = "DOWN"
	HealthStatusDegraded HealthStatus = "DEGRADED"
)

type HealthComponent struct {
	Status  HealthStatus `json:"status"`
	Details string       `json:"details,omitempty"`
}

type SchedulerHealth struct {
	Status        HealthStatus `json:"status"`
	QueueDepth    int          `json:"queueDepth"`
	ActiveWorkers int          `json:"activeWorkers"`
	Replacements  int64        `json:"replacements"`
}

type OCRHealth struct {
	Initialized bool            `json:"initialized"`
	Workers     int             `json:"workers"`
	Scheduler   SchedulerHealth `json:"scheduler"`
}

type HealthServices struct {
	Cache   HealthComponent  `json:"cache"`
	OCR     OCRHealth        `json:"ocr"`
	Archive *HealthComponent `json:"archive,omitempty"`
}

type HealthCheck struct {
	Status    HealthStatus   `json:"status"`
	Services  HealthServices `json:"services"`
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Uptime    string         `json:"uptime"`
}
