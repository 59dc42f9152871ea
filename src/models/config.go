package models

// MConfig Structure
type MConfig struct {
	Name      string         `yaml:"name"`
	Host      string         `yaml:"host"`
	Port      int            `yaml:"port"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"` // "json" or "text"
	LogOutput string         `yaml:"log_output"` // stdout, stderr or a file path
	LogMaxAge int            `yaml:"log_max_age_days"`
	GrpcHost  string         `yaml:"grpc_host"`
	GrpcPort  int            `yaml:"grpc_port"`
	Storage   MStorageConfig `yaml:"storage"`
	Hub       MHubConfig     `yaml:"hub"`
	Ingest    MIngestConfig  `yaml:"ingest"`
}

type MStorageConfig struct {
	DBType                 string `yaml:"db_type"`
	DBPath                 string `yaml:"db_path"`
	DBConnectionString     string `yaml:"db_connection_string"`
	Schema                 string `yaml:"schema"` // Postgres only
	DataRetentionDays      int    `yaml:"data_retention_days"`
	CleanupIntervalMinutes int    `yaml:"cleanup_interval_minutes"`
}

type MHubConfig struct {
	MaxSubscriptions  int    `yaml:"max_subscriptions"`
	SendBufferSize    int    `yaml:"send_buffer_size"`
	EventQueueSize    int    `yaml:"event_queue_size"`
	WriteWaitSeconds  int    `yaml:"write_wait_seconds"`
	PongWaitSeconds   int    `yaml:"pong_wait_seconds"`
	MaxMessageBytes   int64  `yaml:"max_message_bytes"`
	SubscriptionStore string `yaml:"subscription_store"` // "memory" or "database"

	// PushURL points ingestion at a remote hub's /ws/notify. Empty means in-process.
	PushURL            string `yaml:"push_url"`
	PushTimeoutSeconds int    `yaml:"push_timeout_seconds"`
	PushRetries        int    `yaml:"push_retries"`
}

type MIngestConfig struct {
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
	CalendarMIC    string  `yaml:"calendar_mic"`
	NoBroadcast    bool    `yaml:"no_broadcast"` // persist only, skip hub notifications
}
