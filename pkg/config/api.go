package config

import "time"

// DefaultAppID namespaces every stored collection.
const DefaultAppID = "default-site-right-v1-native"

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
	StoreBackendSQLite   = "sqlite"
)

// Live feed backends.
const (
	LiveBackendLocal    = "local"
	LiveBackendPostgres = "postgres"
	LiveBackendRedis    = "redis"
)

// APIConfig holds runtime configuration for the store API service.
type APIConfig struct {
	Environment        string
	Addr               string
	StoreBackend       string
	DatabaseURL        string
	SQLitePath         string
	AppID              string
	JWTSecret          string
	SessionTTL         time.Duration
	LiveBackend        string
	LiveChannel        string
	SSEHeartbeat       time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
	// TrustedProxies lists addresses or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies     []string
}

// LoadAPIConfig constructs an APIConfig from environment variables.
func LoadAPIConfig() APIConfig {
	return APIConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("API_ADDR", ":4000"),
		StoreBackend:       GetString("STORE_BACKEND", StoreBackendPostgres),
		DatabaseURL:        GetString("DATABASE_URL", "postgres://siteright:siteright@db:5432/siteright?sslmode=disable"),
		SQLitePath:         GetString("SQLITE_PATH", "data/siteright.db"),
		AppID:              GetString("APP_ID", DefaultAppID),
		JWTSecret:          GetString("JWT_SECRET", "supersecuresecret"),
		SessionTTL:         time.Duration(GetInt("SESSION_TTL_HOURS", 24*30)) * time.Hour,
		LiveBackend:        GetString("LIVE_BACKEND", LiveBackendLocal),
		LiveChannel:        GetString("LIVE_CHANNEL", "siteright_changes"),
		SSEHeartbeat:       GetSeconds("SSE_HEARTBEAT_SECONDS", 15),
		RedisAddr:          GetString("REDIS_ADDR", ""),
		RedisPassword:      GetString("REDIS_PASSWORD", ""),
		RedisDB:            GetInt("REDIS_DB", 0),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
		TrustedProxies:     GetList("TRUSTED_PROXIES"),
	}
}
