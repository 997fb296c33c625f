package config

import (
	"os"
	"strconv"
	"time"
)

// AppConfig carries everything main wires together. Values come from ENV
// with defaults that match a local dev setup.
type AppConfig struct {
	NodeID    int64
	Port      int
	ClientURL string // CORS origin allowed to send credentials

	MongoURI   string
	MongoDB    string
	MongoUser  string
	MongoPass  string
	MongoPool  int
	MongoRetry int

	RedisAddr     string // empty disables the presence mirror
	RedisPassword string
	RedisDB       int

	UploadDir string

	JwtSecret []byte
	JwtTTL    time.Duration

	// Liveness cycle: probe every PingInterval; a probe not acknowledged
	// within PongDeadline evicts the connection.
	PingInterval time.Duration
	PongDeadline time.Duration
	WriteWait    time.Duration
	SendQueue    int
}

var Global = Load()

func Load() AppConfig {
	return AppConfig{
		NodeID:    envInt64("NODE_ID", 1),
		Port:      envInt("PORT", 3000),
		ClientURL: envStr("CLIENT_URL", "http://localhost:5173"),

		MongoURI:   envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:    envStr("MONGO_DB", "chat"),
		MongoUser:  envStr("MONGO_USER", ""),
		MongoPass:  envStr("MONGO_PASS", ""),
		MongoPool:  envInt("MONGO_POOL", 20),
		MongoRetry: envInt("MONGO_RETRY", 3),

		RedisAddr:     envStr("REDIS_ADDR", ""),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		UploadDir: envStr("UPLOAD_DIR", "uploads"),

		JwtSecret: []byte(envStr("JWT_SECRET", "dev-only-secret-change-me")),
		JwtTTL:    envDur("JWT_TTL", 2*time.Hour),

		PingInterval: envDur("PING_INTERVAL", 10*time.Second),
		PongDeadline: envDur("PONG_DEADLINE", time.Second),
		WriteWait:    envDur("WRITE_WAIT", 10*time.Second),
		SendQueue:    envInt("SEND_QUEUE", 256),
	}
}

func GetJwtSecret() []byte { return Global.JwtSecret }

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
