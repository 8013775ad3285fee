package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server       ServerConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	Pool         PoolConfig
	Queue        QueueConfig
	Recovery     RecoveryConfig
	Worker       WorkerConfig
	Metrics      MetricsConfig
	Log          LogConfig
	Artifact     ArtifactConfig
	Orchestrator OrchestratorConfig
}

type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	Addr     string
	User     string
	Password string
	Database string
}

// PoolConfig governs the Pool Manager (§4.2).
type PoolConfig struct {
	MaxPoolSize         int
	NetworkName         string
	ContainerMemMB      int64
	ContainerCPU        float64
	DeployTimeout       time.Duration
	DeployGracePeriod   time.Duration
	DeployPollInterval  time.Duration
	MaxDeployRetries    int
}

// QueueConfig governs the Queue Manager (§4.3).
type QueueConfig struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
	DrainInterval  time.Duration
}

// RecoveryConfig governs the Slot Recovery Worker (§4.5).
type RecoveryConfig struct {
	Interval            time.Duration
	StuckDeployThreshold time.Duration
	MaxAttempts         int
}

type WorkerConfig struct {
	Concurrency int
	// LocalDevelopment short-circuits Pool/Queue entirely and spawns a
	// local OS process per bot instead (§4.4 step 3).
	LocalDevelopment bool
	AgentBinaryPath  string
}

type MetricsConfig struct {
	Addr string
}

type LogConfig struct {
	Level string
}

type ArtifactConfig struct {
	Root      string // filesystem root for the object store (§6.5)
	PublicURL string // base URL signed artifact links are rooted at
	Secret    string // HMAC secret for signed URLs
}

// OrchestratorConfig selects which Container Orchestrator Adapter backend
// the Pool Manager talks to (§4.1).
type OrchestratorConfig struct {
	Backend          string // "docker" or "local"
	ImageMeet        string
	ImageTeams       string
	ImageZoom        string
	ControlPlaneURL  string
}

// Load reads configuration from the environment, applying the defaults
// named throughout spec §4.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Postgres: PostgresConfig{
			Addr:     getEnv("POSTGRES_ADDR", "localhost:5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "botfleet"),
		},
		Pool: PoolConfig{
			MaxPoolSize:        getIntEnv("POOL_MAX_SIZE", 100),
			NetworkName:        getEnv("POOL_NETWORK_NAME", "botfleet-net"),
			ContainerMemMB:     int64(getIntEnv("POOL_CONTAINER_MEM_MB", 1024)),
			ContainerCPU:       getFloatEnv("POOL_CONTAINER_CPU", 1.0),
			DeployTimeout:      getDurationEnv("POOL_DEPLOY_TIMEOUT", 30*time.Minute),
			DeployGracePeriod:  getDurationEnv("POOL_DEPLOY_GRACE", 20*time.Minute),
			DeployPollInterval: getDurationEnv("POOL_DEPLOY_POLL_INTERVAL", 5*time.Second),
			MaxDeployRetries:   getIntEnv("POOL_MAX_DEPLOY_RETRIES", 3),
		},
		Queue: QueueConfig{
			DefaultTimeout: getDurationEnv("QUEUE_DEFAULT_TIMEOUT", 5*time.Minute),
			MaxTimeout:     getDurationEnv("QUEUE_MAX_TIMEOUT", 10*time.Minute),
			DrainInterval:  getDurationEnv("QUEUE_DRAIN_INTERVAL", 30*time.Second),
		},
		Recovery: RecoveryConfig{
			Interval:             getDurationEnv("RECOVERY_INTERVAL", 5*time.Minute),
			StuckDeployThreshold: getDurationEnv("RECOVERY_STUCK_DEPLOY_THRESHOLD", 5*time.Minute),
			MaxAttempts:          getIntEnv("RECOVERY_MAX_ATTEMPTS", 3),
		},
		Worker: WorkerConfig{
			Concurrency:      getIntEnv("WORKER_CONCURRENCY", 10),
			LocalDevelopment: getBoolEnv("LOCAL_DEVELOPMENT", false),
			AgentBinaryPath:  getEnv("AGENT_BINARY_PATH", "botfleet-agent"),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Artifact: ArtifactConfig{
			Root:      getEnv("ARTIFACT_ROOT", defaultArtifactRoot()),
			PublicURL: getEnv("ARTIFACT_PUBLIC_URL", "http://localhost:8080"),
			Secret:    getEnv("ARTIFACT_SIGNING_SECRET", "dev-insecure-secret"),
		},
		Orchestrator: OrchestratorConfig{
			Backend:         getEnv("ORCHESTRATOR_BACKEND", "docker"),
			ImageMeet:       getEnv("ORCHESTRATOR_IMAGE_MEET", "botfleet-agent:meet"),
			ImageTeams:      getEnv("ORCHESTRATOR_IMAGE_TEAMS", "botfleet-agent:teams"),
			ImageZoom:       getEnv("ORCHESTRATOR_IMAGE_ZOOM", "botfleet-agent:zoom"),
			ControlPlaneURL: getEnv("CONTROL_PLANE_URL", "http://localhost:8080"),
		},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		switch val {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

// AgentConfig parameterizes the Bot Agent Runtime process (§4.7) —
// distinct from Config, which governs the control plane itself. LoadAgent
// reads the discrete BOT_* variables; cmd/agent then takes the bot id,
// platform, chat flag and heartbeat interval from the BOT_DATA payload the
// Pool Manager injects (§6.2) whenever that variable is set.
type AgentConfig struct {
	ControlPlaneURL   string
	BotID             int64
	Token             string
	Platform          string
	ChatEnabled       bool
	HeartbeatInterval time.Duration
	MaxDuration       time.Duration
	ChatPollInterval  time.Duration
}

// LoadAgent reads the in-container agent's configuration from the
// environment.
func LoadAgent() *AgentConfig {
	return &AgentConfig{
		ControlPlaneURL:   getEnv("CONTROL_PLANE_URL", "http://localhost:8080"),
		BotID:             int64(getIntEnv("BOT_ID", 0)),
		Token:             getEnv("BOT_AGENT_TOKEN", ""),
		Platform:          getEnv("BOT_PLATFORM", ""),
		ChatEnabled:       getBoolEnv("BOT_CHAT_ENABLED", false),
		HeartbeatInterval: getDurationEnv("BOT_HEARTBEAT_INTERVAL", 10*time.Second),
		MaxDuration:       getDurationEnv("BOT_MAX_DURATION", 60*time.Minute),
		ChatPollInterval:  getDurationEnv("BOT_CHAT_POLL_INTERVAL", 5*time.Second),
	}
}

func defaultArtifactRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/botfleet/artifacts"
	}
	return home + "/.botfleet/artifacts"
}
