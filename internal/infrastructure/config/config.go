// Package config provides centralized configuration management
// using Viper for configuration loading and validation
package config

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AWS        AWSConfig        `mapstructure:"aws"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Market     MarketConfig     `mapstructure:"market"`
	Nutrition  NutritionConfig  `mapstructure:"nutrition"`
	Bucket     BucketConfig     `mapstructure:"bucket"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Contract   ContractConfig   `mapstructure:"contract"`
	Solver     SolverConfig     `mapstructure:"solver"`
	Planner    PlannerConfig    `mapstructure:"planner"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	EnableCompression bool          `mapstructure:"enable_compression"`
	EnableH2C         bool          `mapstructure:"enable_h2c"`
}

// DatabaseConfig contains canonical-store database configuration
type DatabaseConfig struct {
	Driver             string        `mapstructure:"driver"`
	Path               string        `mapstructure:"path"`
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	Database           string        `mapstructure:"database"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	SSLMode            string        `mapstructure:"ssl_mode"`
	MaxOpenConns       int           `mapstructure:"max_open_conns"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel           string        `mapstructure:"log_level"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
	AutoMigrate        bool          `mapstructure:"auto_migrate"`
	MigrationsPath     string        `mapstructure:"migrations_path"`
}

// RedisConfig contains Redis configuration for the shared KV service
type RedisConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	Database        int           `mapstructure:"database"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PoolSize        int           `mapstructure:"pool_size"`
}

// AWSConfig contains AWS configuration for the dataset source
type AWSConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	Endpoint        string `mapstructure:"endpoint"`
	S3Bucket        string `mapstructure:"s3_bucket"`
	DatasetKey      string `mapstructure:"dataset_key"`
}

// LLMConfig contains language-model client configuration
type LLMConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	SketchTimeout   time.Duration `mapstructure:"sketch_timeout"`
	DescribeTimeout time.Duration `mapstructure:"describe_timeout"`
	DescribeWorkers int           `mapstructure:"describe_workers"`
}

// MarketConfig contains supermarket search client and vetting configuration
type MarketConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	DefaultStore  string        `mapstructure:"default_store"`
	PageSize      int           `mapstructure:"page_size"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	Retry429Delay time.Duration `mapstructure:"retry_429_delay"`
	Workers       int           `mapstructure:"workers"`

	// Candidate vetting knobs.
	SizeLowerFactor       float64 `mapstructure:"size_lower_factor"`
	SizeUpperFactor       float64 `mapstructure:"size_upper_factor"`
	PantrySizeUpperFactor float64 `mapstructure:"pantry_size_upper_factor"`
	MaxUnitPrice100       float64 `mapstructure:"max_unit_price_100"`
	OutlierZScore         float64 `mapstructure:"outlier_z_score"`
	OutlierMinSample      int     `mapstructure:"outlier_min_sample"`
}

// NutritionConfig contains nutrition-provider and resolution configuration
type NutritionConfig struct {
	BarcodeBaseURL    string        `mapstructure:"barcode_base_url"`
	FoodSearchBaseURL string        `mapstructure:"food_search_base_url"`
	FoodSearchAPIKey  string        `mapstructure:"food_search_api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	Workers           int           `mapstructure:"workers"`
	RatePerSec        float64       `mapstructure:"rate_per_sec"`

	// Fingerprint gate tolerances against registry expectations.
	FingerprintMacroPct float64 `mapstructure:"fingerprint_macro_pct"`
	FingerprintKcalPct  float64 `mapstructure:"fingerprint_kcal_pct"`
	FuzzyMaxDistance    int     `mapstructure:"fuzzy_max_distance"`
}

// BucketConfig contains the shared token bucket configuration
type BucketConfig struct {
	Capacity     float64       `mapstructure:"capacity"`
	RefillPerSec float64       `mapstructure:"refill_per_sec"`
	MaxWait      time.Duration `mapstructure:"max_wait"`
	CASAttempts  int           `mapstructure:"cas_attempts"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// CacheConfig contains the stale-while-revalidate cache windows
type CacheConfig struct {
	FreshTTL         time.Duration `mapstructure:"fresh_ttl"`
	HardTTL          time.Duration `mapstructure:"hard_ttl"`
	RefreshMarkerTTL time.Duration `mapstructure:"refresh_marker_ttl"`
	PricePrefix      string        `mapstructure:"price_prefix"`
	NutritionPrefix  string        `mapstructure:"nutrition_prefix"`
}

// ContractConfig contains macro-contract derivation tunables
type ContractConfig struct {
	ProteinSplit       float64 `mapstructure:"protein_split"`
	FatSplit           float64 `mapstructure:"fat_split"`
	ProteinCapGPerKg   float64 `mapstructure:"protein_cap_g_per_kg"`
	ProteinFloorGPerKg float64 `mapstructure:"protein_floor_g_per_kg"`
	FatCapPct          float64 `mapstructure:"fat_cap_pct"`
	FatFloorGPerKg     float64 `mapstructure:"fat_floor_g_per_kg"`
	ProteinMaxGPerKg   float64 `mapstructure:"protein_max_g_per_kg"`
	FatMaxFactor       float64 `mapstructure:"fat_max_factor"`
	CarbMinFactor      float64 `mapstructure:"carb_min_factor"`
	KcalMin            float64 `mapstructure:"kcal_min"`

	KcalTolerancePct  float64 `mapstructure:"kcal_tolerance_pct"`
	MacroTolerancePct float64 `mapstructure:"macro_tolerance_pct"`
	SnackWidening     float64 `mapstructure:"snack_widening"`

	CutModeratePct        float64 `mapstructure:"cut_moderate_pct"`
	CutAggressivePct      float64 `mapstructure:"cut_aggressive_pct"`
	LeanSurplusKcal       float64 `mapstructure:"lean_surplus_kcal"`
	AggressiveSurplusKcal float64 `mapstructure:"aggressive_surplus_kcal"`
}

// SolverConfig contains portion solver tunables
type SolverConfig struct {
	MaxIterations  int     `mapstructure:"max_iterations"`
	MaxBacktracks  int     `mapstructure:"max_backtracks"`
	Acceleration   float64 `mapstructure:"acceleration"`
	InitialStep    float64 `mapstructure:"initial_step"`
	ScaleMin       float64 `mapstructure:"scale_min"`
	ScaleMax       float64 `mapstructure:"scale_max"`
	WeightKcal     float64 `mapstructure:"weight_kcal"`
	WeightProtein  float64 `mapstructure:"weight_protein"`
	WeightFat      float64 `mapstructure:"weight_fat"`
	WeightCarb     float64 `mapstructure:"weight_carb"`
	HeuristicIters int     `mapstructure:"heuristic_iters"`
	EnableBooster  bool    `mapstructure:"enable_booster"`
}

// PlannerConfig contains orchestrator configuration
type PlannerConfig struct {
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	EnableDescriptions bool          `mapstructure:"enable_descriptions"`
	LogLimit           int           `mapstructure:"log_limit"`
}

// MonitoringConfig contains monitoring configuration
type MonitoringConfig struct {
	EnableMetrics   bool    `mapstructure:"enable_metrics"`
	MetricsPath     string  `mapstructure:"metrics_path"`
	EnableTracing   bool    `mapstructure:"enable_tracing"`
	OTLPEndpoint    string  `mapstructure:"otlp_endpoint"`
	SamplingRate    float64 `mapstructure:"sampling_rate"`
	HealthCheckPath string  `mapstructure:"health_check_path"`
	ReadinessPath   string  `mapstructure:"readiness_path"`
	LivenessPath    string  `mapstructure:"liveness_path"`
}

// RateLimitConfig contains inbound HTTP rate limiting configuration
type RateLimitConfig struct {
	Enable          bool          `mapstructure:"enable"`
	RequestsPerSec  float64       `mapstructure:"requests_per_sec"`
	Burst           int           `mapstructure:"burst"`
	PerIPPerSec     float64       `mapstructure:"per_ip_per_sec"`
	PerIPBurst      int           `mapstructure:"per_ip_burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg, _, err := load(configPath)
	return cfg, err
}

// LoadWithWatch loads configuration and re-reads the file on change,
// invoking onChange with the freshly validated configuration. An invalid
// edit is reported through onChange with a nil config; the previous
// configuration stays active.
func LoadWithWatch(configPath string, onChange func(*Config, error)) (*Config, error) {
	cfg, v, err := load(configPath)
	if err != nil {
		return nil, err
	}
	if onChange != nil {
		v.OnConfigChange(func(_ fsnotify.Event) {
			var next Config
			if err := v.Unmarshal(&next); err != nil {
				onChange(nil, fmt.Errorf("failed to unmarshal config: %w", err))
				return
			}
			if err := next.Validate(); err != nil {
				onChange(nil, fmt.Errorf("invalid configuration: %w", err))
				return
			}
			onChange(&next, nil)
		})
		v.WatchConfig()
	}
	return cfg, nil
}

func load(configPath string) (*Config, *viper.Viper, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/macrocart")
	}

	// Enable environment variable override
	v.SetEnvPrefix("MACROCART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, we have defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, v, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "MacroCart")
	v.SetDefault("app.version", "2.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Server defaults. The write timeout sits above the request wall so the
	// server never cuts off a run the planner still considers live.
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "200s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.max_header_bytes", 1<<20) // 1MB
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.enable_compression", true)
	v.SetDefault("server.enable_h2c", true)

	// Canonical store defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/canonical.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "macrocart")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.slow_query_threshold", "100ms")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.migrations_path", "migrations")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)

	// AWS defaults
	v.SetDefault("aws.region", "eu-west-2")
	v.SetDefault("aws.s3_bucket", "")
	v.SetDefault("aws.dataset_key", "canonical/nutrition.json")

	// LLM defaults
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.1")
	v.SetDefault("llm.temperature", 0.4)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.sketch_timeout", "90s")
	v.SetDefault("llm.describe_timeout", "20s")
	v.SetDefault("llm.describe_workers", 1)

	// Market client defaults
	v.SetDefault("market.base_url", "http://localhost:8090")
	v.SetDefault("market.default_store", "tesco")
	v.SetDefault("market.page_size", 20)
	v.SetDefault("market.timeout", "8s")
	v.SetDefault("market.max_retries", 3)
	v.SetDefault("market.retry_backoff", "200ms")
	v.SetDefault("market.retry_429_delay", "700ms")
	v.SetDefault("market.workers", 5)
	v.SetDefault("market.size_lower_factor", 0.5)
	v.SetDefault("market.size_upper_factor", 2.0)
	v.SetDefault("market.pantry_size_upper_factor", 3.0)
	v.SetDefault("market.max_unit_price_100", 1000.0)
	v.SetDefault("market.outlier_z_score", 2.0)
	v.SetDefault("market.outlier_min_sample", 3)

	// Nutrition provider defaults
	v.SetDefault("nutrition.barcode_base_url", "https://world.openfoodfacts.org")
	v.SetDefault("nutrition.food_search_base_url", "http://localhost:8091")
	v.SetDefault("nutrition.timeout", "8s")
	v.SetDefault("nutrition.max_retries", 2)
	v.SetDefault("nutrition.workers", 5)
	v.SetDefault("nutrition.rate_per_sec", 5.0)
	v.SetDefault("nutrition.fingerprint_macro_pct", 0.25)
	v.SetDefault("nutrition.fingerprint_kcal_pct", 0.20)
	v.SetDefault("nutrition.fuzzy_max_distance", 3)

	// Token bucket defaults
	v.SetDefault("bucket.capacity", 10.0)
	v.SetDefault("bucket.refill_per_sec", 10.0)
	v.SetDefault("bucket.max_wait", "250ms")
	v.SetDefault("bucket.cas_attempts", 3)
	v.SetDefault("bucket.key_prefix", "market:bucket:")

	// SWR cache defaults
	v.SetDefault("cache.fresh_ttl", "1h")
	v.SetDefault("cache.hard_ttl", "3h")
	v.SetDefault("cache.refresh_marker_ttl", "30s")
	v.SetDefault("cache.price_prefix", "cache:price:")
	v.SetDefault("cache.nutrition_prefix", "cache:nutrition:")

	// Contract defaults
	v.SetDefault("contract.protein_split", 0.30)
	v.SetDefault("contract.fat_split", 0.20)
	v.SetDefault("contract.protein_cap_g_per_kg", 3.0)
	v.SetDefault("contract.protein_floor_g_per_kg", 1.6)
	v.SetDefault("contract.fat_cap_pct", 0.35)
	v.SetDefault("contract.fat_floor_g_per_kg", 0.8)
	v.SetDefault("contract.protein_max_g_per_kg", 2.8)
	v.SetDefault("contract.fat_max_factor", 1.5)
	v.SetDefault("contract.carb_min_factor", 0.8)
	v.SetDefault("contract.kcal_min", 1200.0)
	v.SetDefault("contract.kcal_tolerance_pct", 0.03)
	v.SetDefault("contract.macro_tolerance_pct", 0.08)
	v.SetDefault("contract.snack_widening", 1.25)
	v.SetDefault("contract.cut_moderate_pct", 0.15)
	v.SetDefault("contract.cut_aggressive_pct", 0.25)
	v.SetDefault("contract.lean_surplus_kcal", 250.0)
	v.SetDefault("contract.aggressive_surplus_kcal", 500.0)

	// Solver defaults
	v.SetDefault("solver.max_iterations", 800)
	v.SetDefault("solver.max_backtracks", 6)
	v.SetDefault("solver.acceleration", 1.10)
	v.SetDefault("solver.initial_step", 0.05)
	v.SetDefault("solver.scale_min", 0.3)
	v.SetDefault("solver.scale_max", 3.0)
	v.SetDefault("solver.weight_kcal", 1.0)
	v.SetDefault("solver.weight_protein", 1.2)
	v.SetDefault("solver.weight_fat", 1.2)
	v.SetDefault("solver.weight_carb", 1.6)
	v.SetDefault("solver.heuristic_iters", 400)
	v.SetDefault("solver.enable_booster", true)

	// Planner defaults
	v.SetDefault("planner.request_timeout", "180s")
	v.SetDefault("planner.enable_descriptions", true)
	v.SetDefault("planner.log_limit", 2000)

	// Monitoring defaults
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.enable_tracing", false)
	v.SetDefault("monitoring.otlp_endpoint", "localhost:4318")
	v.SetDefault("monitoring.sampling_rate", 0.1)
	v.SetDefault("monitoring.health_check_path", "/health")
	v.SetDefault("monitoring.readiness_path", "/health/ready")
	v.SetDefault("monitoring.liveness_path", "/health/live")

	// Rate limit defaults
	v.SetDefault("rate_limit.enable", true)
	v.SetDefault("rate_limit.requests_per_sec", 50.0)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.per_ip_per_sec", 2.0)
	v.SetDefault("rate_limit.per_ip_burst", 5)
	v.SetDefault("rate_limit.cleanup_interval", "5m")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}

	if c.Market.PageSize < 1 || c.Market.PageSize > 100 {
		return fmt.Errorf("market.page_size must be between 1 and 100")
	}
	if c.Market.Workers < 1 || c.Nutrition.Workers < 1 || c.LLM.DescribeWorkers < 1 {
		return fmt.Errorf("worker counts must be at least 1")
	}

	if c.Bucket.Capacity <= 0 || c.Bucket.RefillPerSec <= 0 {
		return fmt.Errorf("bucket.capacity and bucket.refill_per_sec must be positive")
	}
	if c.Bucket.CASAttempts < 1 {
		return fmt.Errorf("bucket.cas_attempts must be at least 1")
	}

	if c.Cache.FreshTTL <= 0 || c.Cache.HardTTL <= c.Cache.FreshTTL {
		return fmt.Errorf("cache.hard_ttl must exceed cache.fresh_ttl")
	}

	if c.Contract.ProteinSplit <= 0 || c.Contract.ProteinSplit >= 1 ||
		c.Contract.FatSplit <= 0 || c.Contract.FatSplit >= 1 {
		return fmt.Errorf("contract macro splits must be fractions in (0, 1)")
	}

	if c.Solver.ScaleMin <= 0 || c.Solver.ScaleMax <= c.Solver.ScaleMin {
		return fmt.Errorf("solver.scale_max must exceed solver.scale_min")
	}

	if c.Planner.RequestTimeout <= 0 {
		return fmt.Errorf("planner.request_timeout must be positive")
	}

	return nil
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// GetDSN returns the canonical-store connection string for postgres
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Username,
		c.Database.Password,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// Runtime holds the active configuration and swaps it atomically on hot
// reload. Request-scoped code reads Current once at the start of a run, so
// a reload never changes tunables mid-flight.
type Runtime struct {
	current atomic.Pointer[Config]
}

// NewRuntime creates a runtime holder seeded with cfg.
func NewRuntime(cfg *Config) *Runtime {
	r := &Runtime{}
	r.current.Store(cfg)
	return r
}

// Current returns the active configuration.
func (r *Runtime) Current() *Config {
	return r.current.Load()
}

// Swap replaces the active configuration.
func (r *Runtime) Swap(cfg *Config) {
	r.current.Store(cfg)
}
