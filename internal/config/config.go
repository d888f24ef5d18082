package config

import (
	"os"
	"strconv"
)

type Config struct {
	HTTPAddr    string
	SpecPath    string
	PostgresDSN string
	LogLevel    string

	JWTIssuer        string
	JWTAudience      string
	JWTHMACSecret    string
	JWTJWKSURL       string
	JWTClockSkewSecs int
	JWTScopeClaim    string

	APIKeyCacheTTLSeconds int

	RateLimitRequests      int
	RateLimitWriteRequests int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PolicyBundlePath string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		SpecPath:               envDefault("SPEC_PATH", "swagger.yml"),
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		JWTIssuer:              os.Getenv("JWT_ISSUER"),
		JWTAudience:            os.Getenv("JWT_AUDIENCE"),
		JWTHMACSecret:          os.Getenv("JWT_HMAC_SECRET"),
		JWTJWKSURL:             os.Getenv("JWT_JWKS_URL"),
		JWTClockSkewSecs:       envIntDefault("JWT_CLOCK_SKEW_SECONDS", 60),
		JWTScopeClaim:          envDefault("JWT_SCOPE_CLAIM", "scope"),
		APIKeyCacheTTLSeconds:  envIntDefault("APIKEY_CACHE_TTL_SECONDS", 0),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWriteRequests: envIntDefault("RATE_LIMIT_WRITE_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		PolicyBundlePath:       os.Getenv("POLICY_BUNDLE_PATH"),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
