package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/Nixie-Tech-LLC/workoutboard/internal/model"
)

// Config holds file- and environment-based settings
type Config struct {
	Environment   string `toml:"app_env"`
	LogLevel      string `toml:"log_level"`
	ServerAddress string `toml:"server_address"`

	DatabaseDriver string `toml:"database_driver"`
	DatabaseURL    string `toml:"database_url"`

	FacilityTimezone string            `toml:"facility_timezone"`
	Boards           []model.BoardSpec `toml:"boards"`
	Versions         []model.Version   `toml:"versions"`

	RotationHour          int      `toml:"rotation_hour"`
	RotationMinute        int      `toml:"rotation_minute"`
	RotationCheckInterval Duration `toml:"rotation_check_interval"`
	RotationLockPath      string   `toml:"rotation_lock_path"`

	SnapshotPath string `toml:"snapshot_path"`

	StaticCacheBackend string `toml:"static_cache_backend"`
	StaticCacheDir     string `toml:"static_cache_dir"`

	RedisAddress  string `toml:"redis_address"`
	RedisUsername string `toml:"redis_username"`
	RedisPassword string `toml:"redis_password"`

	SpacesEndpoint  string `toml:"spaces_endpoint"`
	SpacesRegion    string `toml:"spaces_region"`
	SpacesBucket    string `toml:"spaces_bucket"`
	SpacesAccessKey string `toml:"spaces_access_key"`
	SpacesSecretKey string `toml:"spaces_secret_key"`

	MQTTBrokerURL string `toml:"mqtt_broker_url"`
	MQTTClientID  string `toml:"mqtt_client_id"`

	TVRefreshInterval int      `toml:"tv_refresh_interval"`
	LayerTimeout      Duration `toml:"layer_timeout"`

	APIKey     string `toml:"api_key"`
	APIKeyHash string `toml:"api_key_hash"`
	JWTSecret  string `toml:"jwt_secret"`

	location *time.Location
}

const (
	DriverSqlite   = "sqlite"
	DriverPostgres = "postgres"

	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSpaces = "spaces"
)

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Environment:      "development",
		LogLevel:         "info",
		ServerAddress:    ":8000",
		DatabaseDriver:   DriverSqlite,
		DatabaseURL:      "./schedule.db",
		FacilityTimezone: "America/Chicago",
		Boards: []model.BoardSpec{
			{Name: model.BoardMain, DefaultVersion: model.VersionRx},
			{Name: model.BoardMod, DefaultVersion: model.VersionMod},
		},
		Versions:              []model.Version{model.VersionRx, model.VersionScaled, model.VersionMod},
		RotationCheckInterval: Duration{30 * time.Second},
		RotationLockPath:      "./rotation.lock",
		SnapshotPath:          "./schedule_backup.json",
		StaticCacheBackend:    BackendFile,
		StaticCacheDir:        "./cache",
		MQTTClientID:          "workoutboard",
		TVRefreshInterval:     60,
		LayerTimeout:          Duration{2 * time.Second},
	}
}

// Load reads .env, then the optional TOML file named by CONFIG_FILE, then
// environment variables, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}
	duration := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		dst.Duration = d
		return nil
	}

	str("APP_ENV", &c.Environment)
	str("LOG_LEVEL", &c.LogLevel)
	str("SERVER_ADDRESS", &c.ServerAddress)
	str("DATABASE_DRIVER", &c.DatabaseDriver)
	str("DATABASE_URL", &c.DatabaseURL)
	str("FACILITY_TIMEZONE", &c.FacilityTimezone)
	str("ROTATION_LOCK_PATH", &c.RotationLockPath)
	str("SNAPSHOT_PATH", &c.SnapshotPath)
	str("STATIC_CACHE_BACKEND", &c.StaticCacheBackend)
	str("STATIC_CACHE_DIR", &c.StaticCacheDir)
	str("REDIS_ADDRESS", &c.RedisAddress)
	str("REDIS_USERNAME", &c.RedisUsername)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("SPACES_ENDPOINT", &c.SpacesEndpoint)
	str("SPACES_REGION", &c.SpacesRegion)
	str("SPACES_BUCKET", &c.SpacesBucket)
	str("SPACES_ACCESS_KEY", &c.SpacesAccessKey)
	str("SPACES_SECRET_KEY", &c.SpacesSecretKey)
	str("MQTT_BROKER_URL", &c.MQTTBrokerURL)
	str("MQTT_CLIENT_ID", &c.MQTTClientID)
	str("API_KEY", &c.APIKey)
	str("API_KEY_HASH", &c.APIKeyHash)
	str("JWT_SECRET", &c.JWTSecret)

	for key, dst := range map[string]*int{
		"ROTATION_HOUR":       &c.RotationHour,
		"ROTATION_MINUTE":     &c.RotationMinute,
		"TV_REFRESH_INTERVAL": &c.TVRefreshInterval,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}
	if err := duration("ROTATION_CHECK_INTERVAL", &c.RotationCheckInterval); err != nil {
		return err
	}
	if err := duration("LAYER_TIMEOUT", &c.LayerTimeout); err != nil {
		return err
	}

	if v, ok := lookup("BOARDS"); ok && v != "" {
		boards, err := parseBoards(v)
		if err != nil {
			return err
		}
		c.Boards = boards
	}
	if v, ok := lookup("VERSIONS"); ok && v != "" {
		c.Versions = nil
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				c.Versions = append(c.Versions, model.Version(part))
			}
		}
	}
	return nil
}

// Duration reads "30s" style strings from TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := parseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// parseDuration accepts Go durations ("30s") or a bare number of seconds.
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// parseBoards reads "mainboard:rx,modboard:mod".
func parseBoards(v string) ([]model.BoardSpec, error) {
	var out []model.BoardSpec
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, version, _ := strings.Cut(part, ":")
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("BOARDS: empty board name in %q", part)
		}
		out = append(out, model.BoardSpec{
			Name:           model.Board(strings.TrimSpace(name)),
			DefaultVersion: model.Version(strings.TrimSpace(version)),
		})
	}
	return out, nil
}

// Validate checks ranges and cross-field requirements and resolves the timezone.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSqlite, DriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverSqlite, DriverPostgres, c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	loc, err := time.LoadLocation(c.FacilityTimezone)
	if err != nil {
		return fmt.Errorf("FACILITY_TIMEZONE %q: %w", c.FacilityTimezone, err)
	}
	c.location = loc

	if c.RotationHour < 0 || c.RotationHour > 23 {
		return fmt.Errorf("ROTATION_HOUR must be 0-23, got %d", c.RotationHour)
	}
	if c.RotationMinute < 0 || c.RotationMinute > 59 {
		return fmt.Errorf("ROTATION_MINUTE must be 0-59, got %d", c.RotationMinute)
	}
	if c.RotationCheckInterval.Duration <= 0 {
		return errors.New("ROTATION_CHECK_INTERVAL must be positive")
	}
	if c.LayerTimeout.Duration <= 0 {
		return errors.New("LAYER_TIMEOUT must be positive")
	}
	if c.TVRefreshInterval <= 0 {
		return errors.New("TV_REFRESH_INTERVAL must be positive")
	}
	if len(c.Boards) == 0 {
		return errors.New("at least one board must be configured")
	}
	if len(c.Versions) == 0 {
		return errors.New("at least one version must be configured")
	}
	versions := make(map[model.Version]bool, len(c.Versions))
	for _, v := range c.Versions {
		versions[v] = true
	}
	for i, b := range c.Boards {
		if b.DefaultVersion == "" {
			c.Boards[i].DefaultVersion = c.Versions[0]
			continue
		}
		if !versions[b.DefaultVersion] {
			return fmt.Errorf("board %q default version %q is not a configured version", b.Name, b.DefaultVersion)
		}
	}

	switch c.StaticCacheBackend {
	case BackendFile:
		if c.StaticCacheDir == "" {
			return errors.New("STATIC_CACHE_DIR is required for the file backend")
		}
	case BackendRedis:
		if c.RedisAddress == "" {
			return errors.New("REDIS_ADDRESS is required for the redis backend")
		}
	case BackendSpaces:
		if c.SpacesEndpoint == "" || c.SpacesBucket == "" {
			return errors.New("SPACES_ENDPOINT and SPACES_BUCKET are required for the spaces backend")
		}
	default:
		return fmt.Errorf("STATIC_CACHE_BACKEND must be file, redis or spaces, got %q", c.StaticCacheBackend)
	}
	return nil
}

// Location is the facility timezone; valid after Validate.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) Catalog() *model.Catalog {
	return model.NewCatalog(c.Boards, c.Versions)
}

// AuthConfigured reports whether any management credential is set.
func (c *Config) AuthConfigured() bool {
	return c.APIKey != "" || c.APIKeyHash != "" || c.JWTSecret != ""
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
