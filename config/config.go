package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"hr-indexer"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int      `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int      `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (indexed ledger state)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"hr_indexer"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Chain gateway (read-only queries + historical notifications)
	LedgerGatewayURL            string        `env:"LEDGER_GATEWAY_URL" env-default:"http://localhost:8545"`
	LedgerRequestTimeout        time.Duration `env:"LEDGER_REQUEST_TIMEOUT" env-default:"10s"`
	LedgerReplayBatchSize       uint64        `env:"LEDGER_REPLAY_BATCH_SIZE" env-default:"500"`
	LedgerEmploymentContract    string        `env:"LEDGER_EMPLOYMENT_CONTRACT" env-default:""`
	LedgerCredentialContract    string        `env:"LEDGER_CREDENTIAL_CONTRACT" env-default:""`
	LedgerPlatformFeeBasisPoint int           `env:"LEDGER_PLATFORM_FEE_BASIS_POINTS" env-default:"200"`

	// Tracing
	TracingExporter     string `env:"TRACING_EXPORTER" env-default:"console"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
	TracingOTLPInsecure bool   `env:"TRACING_OTLP_INSECURE" env-default:"true"`

	// Kafka (live notification feed, one topic per notification type)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaTopicPrefix     string   `env:"KAFKA_TOPIC_PREFIX" env-default:"ledger.notifications"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"hr-indexer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Redis (publication fan-out)
	RedisHost          string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort          int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword      string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB            int    `env:"REDIS_DB" env-default:"0"`
	RedisChannelPrefix string `env:"REDIS_CHANNEL_PREFIX" env-default:"parties"`

	// Reconciliation
	ReconcileWorkerCount  int           `env:"RECONCILE_WORKER_COUNT" env-default:"4"`
	ReconcileMaxAttempts  int           `env:"RECONCILE_MAX_ATTEMPTS" env-default:"5"`
	ReconcileRetryBackoff time.Duration `env:"RECONCILE_RETRY_BACKOFF" env-default:"250ms"`
	ReconcileQueueDepth   int           `env:"RECONCILE_QUEUE_DEPTH" env-default:"256"`
}
