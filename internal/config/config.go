// Package config loads service configuration from command-line flags, environment variables, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Source kinds for the primary collection source.
const (
	SourceHTTP = "http"
	SourceSQL  = "sql"
	SourceFile = "file"
)

// minQueryLength is the shortest query that runs a text search. Shorter
// queries list the collection unfiltered, so the floor cannot be lowered.
const minQueryLength = 2

// Mapping policies for backend records that fail validation.
const (
	MappingSkip   = "skip"
	MappingStrict = "strict"
)

// Config holds the service configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Backend   BackendConfig
	Source    SourceConfig
	Cache     CacheConfig
	Search    SearchConfig
	Sessions  SessionConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// BackendConfig describes the REST knowledge backend.
type BackendConfig struct {
	BaseURL           string
	Token             string // forwarded as a bearer token, never validated here
	Timeout           time.Duration
	RequestsPerSecond int
	MappingPolicy     string
}

// SourceConfig selects where the collection comes from.
type SourceConfig struct {
	Kind      string
	SQLDriver string // "sqlite" or "pgx"
	SQLDSN    string
	SeedFile  string // fallback data, also the primary when Kind is "file"
	WatchSeed bool
}

// CacheConfig holds the snapshot cache configuration.
type CacheConfig struct {
	Enabled bool
	Path    string
}

// SearchConfig holds index and pipeline tuning.
type SearchConfig struct {
	Fuzziness       int
	MinQueryLength  int
	Debounce        time.Duration
	Watchdog        time.Duration
	PageSize        int
	MaxPageSize     int
	RefreshInterval time.Duration // 0 disables periodic refresh
}

// SessionConfig holds query session configuration.
type SessionConfig struct {
	IdleTTL time.Duration
}

// RateLimitConfig bounds the catalog refresh endpoint.
type RateLimitConfig struct {
	RefreshPerMinute int
	Burst            int
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("kbsearch", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed origins (default: *)")

	backendURL := fs.String("backend-url", "", "Base URL of the knowledge backend")
	backendTimeout := fs.String("backend-timeout", "", "Backend request timeout (default: 10s)")
	backendRPS := fs.String("backend-rps", "", "Backend requests per second (default: 5)")
	mappingPolicy := fs.String("mapping-policy", "", "Invalid backend record policy: skip or strict (default: skip)")

	sourceKind := fs.String("source", "", "Primary collection source: http, sql, or file (default: http)")
	sqlDriver := fs.String("sql-driver", "", "SQL driver: sqlite or pgx (default: sqlite)")
	sqlDSN := fs.String("sql-dsn", "", "SQL data source name")
	seedFile := fs.String("seed-file", "", "Seed collection JSON file")
	watchSeed := fs.String("watch-seed", "", "Reload when the seed file changes (default: true)")

	cacheEnabled := fs.String("cache", "", "Keep a snapshot of the last good collection (default: true)")
	cachePath := fs.String("cache-path", "", "Snapshot cache directory")

	fuzziness := fs.String("fuzziness", "", "Edit distance for fuzzy matches, 0-2 (default: 1)")
	debounce := fs.String("debounce", "", "Query input settle delay (default: 300ms)")
	watchdog := fs.String("watchdog", "", "Search time budget (default: 5s)")
	pageSize := fs.String("page-size", "", "Default page size (default: 5)")
	refreshInterval := fs.String("refresh-interval", "", "Periodic catalog refresh, 0 to disable (default: 0)")

	sessionTTL := fs.String("session-ttl", "", "Idle query session lifetime (default: 30m)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
		},
		Backend: BackendConfig{
			BaseURL:           strings.TrimRight(getConfigValue(*backendURL, "BACKEND_URL", ""), "/"),
			Token:             getConfigValue("", "BACKEND_TOKEN", ""),
			RequestsPerSecond: getIntConfigValue(*backendRPS, "BACKEND_RPS", 5),
			MappingPolicy:     getConfigValue(*mappingPolicy, "MAPPING_POLICY", MappingSkip),
		},
		Source: SourceConfig{
			Kind:      getConfigValue(*sourceKind, "SOURCE", SourceHTTP),
			SQLDriver: getConfigValue(*sqlDriver, "SQL_DRIVER", "sqlite"),
			SQLDSN:    getConfigValue(*sqlDSN, "SQL_DSN", ""),
			SeedFile:  getConfigValue(*seedFile, "SEED_FILE", ""),
			WatchSeed: getBoolConfigValue(*watchSeed, "WATCH_SEED", true),
		},
		Cache: CacheConfig{
			Enabled: getBoolConfigValue(*cacheEnabled, "CACHE_ENABLED", true),
			Path:    getConfigValue(*cachePath, "CACHE_PATH", ""),
		},
		Search: SearchConfig{
			Fuzziness:      getIntConfigValue(*fuzziness, "SEARCH_FUZZINESS", 1),
			MinQueryLength: getIntConfigValue("", "SEARCH_MIN_QUERY_LENGTH", minQueryLength),
			PageSize:       getIntConfigValue(*pageSize, "PAGE_SIZE", 5),
			MaxPageSize:    getIntConfigValue("", "MAX_PAGE_SIZE", 100),
		},
		RateLimit: RateLimitConfig{
			RefreshPerMinute: getIntConfigValue("", "REFRESH_PER_MINUTE", 6),
			Burst:            getIntConfigValue("", "REFRESH_BURST", 2),
		},
	}

	durations := []struct {
		target *time.Duration
		flag   string
		value  string
		envKey string
		def    string
	}{
		{&cfg.Server.ReadTimeout, "read-timeout", *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "write-timeout", *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, "idle-timeout", *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Backend.Timeout, "backend-timeout", *backendTimeout, "BACKEND_TIMEOUT", "10s"},
		{&cfg.Search.Debounce, "debounce", *debounce, "SEARCH_DEBOUNCE", "300ms"},
		{&cfg.Search.Watchdog, "watchdog", *watchdog, "SEARCH_WATCHDOG", "5s"},
		{&cfg.Search.RefreshInterval, "refresh-interval", *refreshInterval, "REFRESH_INTERVAL", "0s"},
		{&cfg.Sessions.IdleTTL, "session-ttl", *sessionTTL, "SESSION_TTL", "30m"},
	}
	for _, d := range durations {
		parsed, err := getDurationConfigValue(d.value, d.envKey, d.def)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.flag, err)
		}
		*d.target = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Source.Kind {
	case SourceHTTP:
		if c.Backend.BaseURL == "" {
			return errors.New("backend-url is required when source is http")
		}
	case SourceSQL:
		if c.Source.SQLDSN == "" {
			return errors.New("sql-dsn is required when source is sql")
		}
		if c.Source.SQLDriver != "sqlite" && c.Source.SQLDriver != "pgx" {
			return fmt.Errorf("invalid sql-driver: %s (must be sqlite or pgx)", c.Source.SQLDriver)
		}
	case SourceFile:
		if c.Source.SeedFile == "" {
			return errors.New("seed-file is required when source is file")
		}
	default:
		return fmt.Errorf("invalid source: %s (must be http, sql, or file)", c.Source.Kind)
	}

	if c.Backend.MappingPolicy != MappingSkip && c.Backend.MappingPolicy != MappingStrict {
		return fmt.Errorf("invalid mapping-policy: %s (must be skip or strict)", c.Backend.MappingPolicy)
	}
	if c.Backend.RequestsPerSecond < 1 {
		return errors.New("backend-rps must be at least 1")
	}

	if c.Search.Fuzziness < 0 || c.Search.Fuzziness > 2 {
		return fmt.Errorf("invalid fuzziness: %d (must be 0, 1, or 2)", c.Search.Fuzziness)
	}
	if c.Search.MinQueryLength < minQueryLength {
		return fmt.Errorf("invalid SEARCH_MIN_QUERY_LENGTH: %d (must be at least %d)", c.Search.MinQueryLength, minQueryLength)
	}
	if c.Search.PageSize < 1 || c.Search.PageSize > c.Search.MaxPageSize {
		return fmt.Errorf("invalid page-size: %d (must be between 1 and %d)", c.Search.PageSize, c.Search.MaxPageSize)
	}
	if c.Search.Debounce < 0 {
		return errors.New("debounce cannot be negative")
	}
	if c.Search.Watchdog <= 0 {
		return errors.New("watchdog must be positive")
	}
	if c.Search.RefreshInterval < 0 {
		return errors.New("refresh-interval cannot be negative")
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return errors.New("cache path cannot be empty after expansion")
	}

	return nil
}

func (c *Config) expandPaths() error {
	if c.Cache.Enabled {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		p, err := expandPath(c.Cache.Path, filepath.Join(homeDir, ".kbsearch", "cache"))
		if err != nil {
			return fmt.Errorf("invalid cache path: %w", err)
		}
		c.Cache.Path = p
	}

	if c.Source.SeedFile != "" {
		p, err := expandPath(c.Source.SeedFile, "")
		if err != nil {
			return fmt.Errorf("invalid seed file: %w", err)
		}
		c.Source.SeedFile = p
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// An empty path resolves to defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real environment variables take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
