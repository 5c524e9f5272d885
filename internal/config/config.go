package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"
)

// Store drivers accepted in STORE_DRIVER.
const (
    DriverMySQL  = "mysql"
    DriverMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // APP_ENV (dev, test, prod)
    Port           string // APP_PORT
    StoreDriver    string // STORE_DRIVER: mysql or memory
    DBUser         string
    DBPass         string // may be empty
    DBHost         string
    DBPort         string
    DBName         string
    DBMaxOpen      int
    JWTSecret      string
    AccessTTLMin   int
    RefreshTTLDays int
    BcryptCost     int
    AMQPURL        string        // empty disables publishing and the audit consumer
    AuditDir       string        // where the audit consumer appends ledger.log
    LogLevel       string        // debug, info, warn, error
    RequestTimeout time.Duration // deadline attached to every request context
    Cache          CacheConfig
    RateLimit      RateLimitConfig
    Redis          RedisConfig
}

// loader collects every missing or malformed variable so a bad deployment
// reports all of them at once.
type loader struct{ errs []error }

func (l *loader) must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || strings.TrimSpace(v) == "" {
        l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
        return ""
    }
    return v
}

func (l *loader) mustInt(key string) int {
    s := l.must(key)
    if s == "" {
        return 0
    }
    n, err := strconv.Atoi(s)
    if err != nil {
        l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
    }
    return n
}

// Load reads the configuration.  The DB_* variables are required only for
// the mysql driver.
func Load() (Config, error) {
    var l loader
    cfg := Config{
        Env:            envStr("APP_ENV", "dev"),
        Port:           envStr("APP_PORT", "8080"),
        StoreDriver:    strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
        DBPass:         os.Getenv("DB_PASS"),
        DBMaxOpen:      envInt("DB_MAX_OPEN_CONNS", 25),
        JWTSecret:      l.must("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
        BcryptCost:     envInt("BCRYPT_COST", 12),
        AMQPURL:        os.Getenv("AMQP_URL"),
        AuditDir:       envStr("AUDIT_DIR", "logs"),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        RequestTimeout: envDur("REQUEST_TIMEOUT", 10*time.Second),
        Cache:          LoadCacheConfig(),
        RateLimit:      loadRateLimit(),
        Redis:          LoadRedisConfig(),
    }
    switch cfg.StoreDriver {
    case DriverMySQL:
        cfg.DBUser = l.must("DB_USER")
        cfg.DBHost = l.must("DB_HOST")
        cfg.DBPort = l.must("DB_PORT")
        cfg.DBName = l.must("DB_NAME")
    case DriverMemory:
    default:
        l.errs = append(l.errs, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver))
    }
    if v := os.Getenv("BCRYPT_COST"); v != "" {
        cfg.BcryptCost = l.mustInt("BCRYPT_COST")
    }
    if cfg.RequestTimeout <= 0 {
        cfg.RequestTimeout = 10 * time.Second
    }
    return cfg, errors.Join(l.errs...)
}

// RateLimitConfig sizes the Redis token bucket in front of the purchase
// endpoints.  A buyer may fire Capacity purchases back to back and then
// earns RefillTokens more every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets expire after this long
    KeyStrategy    string        // ip, user, route, ip_user, user_route, ip_user_route
    Prefix         string
    Debug          bool // expose the bucket key in X-RateLimit-Key
}

var rateKeyStrategies = map[string]bool{
    "ip": true, "user": true, "route": true,
    "ip_user": true, "user_route": true, "ip_user_route": true,
}

func loadRateLimit() RateLimitConfig {
    rl := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       max(envInt("RATE_LIMIT_CAPACITY", 10), 1),
        RefillTokens:   max(envInt("RATE_LIMIT_REFILL_TOKENS", 1), 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", 2*time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 0),
        KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", "user_route")),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "mkt:rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    if rl.RefillInterval <= 0 {
        rl.RefillInterval = 2 * time.Second
    }
    if !rateKeyStrategies[rl.KeyStrategy] {
        rl.KeyStrategy = "user_route"
    }
    // A bucket left alone this long is full again, so dropping its key
    // loses nothing.
    full := time.Duration((rl.Capacity+rl.RefillTokens-1)/rl.RefillTokens+1) * rl.RefillInterval
    if rl.TTL < full {
        rl.TTL = full
    }
    return rl
}

func envStr(key, def string) string {
    if v := strings.TrimSpace(os.Getenv(key)); v != "" {
        return v
    }
    return def
}

func envBool(key string, def bool) bool {
    switch strings.ToLower(envStr(key, "")) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return def
}

func envInt(key string, def int) int {
    if n, err := strconv.Atoi(envStr(key, "")); err == nil {
        return n
    }
    return def
}

func envDur(key string, def time.Duration) time.Duration {
    if d, err := time.ParseDuration(envStr(key, "")); err == nil {
        return d
    }
    return def
}
