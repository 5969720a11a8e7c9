package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Geofence  GeofenceConfig  `mapstructure:"geofence"`
	Wizard    WizardConfig    `mapstructure:"wizard"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	CORSOrigins  string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr      string        `mapstructure:"addr"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	LocalTTL  time.Duration `mapstructure:"local_ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	AccessTTL       time.Duration `mapstructure:"access_ttl"`
	RefreshTTL      time.Duration `mapstructure:"refresh_ttl"`
	TwoFactorTTL    time.Duration `mapstructure:"two_factor_ttl"`
	BcryptCost      int           `mapstructure:"bcrypt_cost"`
	LoginRateLimit  int           `mapstructure:"login_rate_limit"`
	PasswordMinSize int           `mapstructure:"password_min_size"`
}

// DispatchConfig points at the remote booking API.
type DispatchConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// GeofenceConfig restricts pickup locations. Polygon vertices are
// [lat, lon] pairs.
type GeofenceConfig struct {
	Enabled      bool        `mapstructure:"enabled"`
	Polygon      [][]float64 `mapstructure:"polygon"`
	ErrorMessage string      `mapstructure:"error_message"`
}

type WizardConfig struct {
	MinLeadTime    time.Duration `mapstructure:"min_lead_time"`
	AirportKeyword string        `mapstructure:"airport_keyword"`
	IdleTTL        time.Duration `mapstructure:"idle_ttl"`
}

// barcelonaServiceArea is the default pickup area: Barcelona and surroundings.
var barcelonaServiceArea = [][]float64{
	{41.25322849693047, 1.943571485535893},
	{41.29265876908774, 2.155491182032037},
	{41.47922085325457, 2.309771817622752},
	{41.49375281232211, 2.050943965662797},
	{41.4311813291833, 1.950990216372763},
	{41.25322849693047, 1.943571485535893},
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "taxiportal")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "taxiportal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.key_prefix", "taxiportal:")
	v.SetDefault("valkey.local_ttl", "30s")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.access_ttl", time.Hour)
	v.SetDefault("auth.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("auth.two_factor_ttl", 10*time.Minute)
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.password_min_size", 8)
	v.SetDefault("dispatch.base_url", "http://localhost:9090")
	v.SetDefault("dispatch.api_key", "")
	v.SetDefault("dispatch.timeout", 15*time.Second)
	v.SetDefault("temporal.enabled", false)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "taxiportal-bookings")
	v.SetDefault("geofence.enabled", true)
	v.SetDefault("geofence.polygon", barcelonaServiceArea)
	v.SetDefault("geofence.error_message", "El lugar de recogida debe estar dentro del área de servicio de Barcelona y alrededores")
	v.SetDefault("wizard.min_lead_time", 3*time.Hour)
	v.SetDefault("wizard.airport_keyword", "aeropuerto")
	v.SetDefault("wizard.idle_ttl", 2*time.Hour)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TAXIPORTAL_DATABASE_HOST → database.host
	v.SetEnvPrefix("TAXIPORTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, "auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 || c.Auth.TwoFactorTTL <= 0 {
		errs = append(errs, "auth token TTLs must be positive")
	}
	if c.Dispatch.BaseURL == "" {
		errs = append(errs, "dispatch.base_url is required")
	}
	if c.Temporal.Enabled && c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required when temporal is enabled")
	}
	if c.Geofence.Enabled {
		for i, p := range c.Geofence.Polygon {
			if len(p) != 2 {
				errs = append(errs, fmt.Sprintf("geofence.polygon[%d] must be a [lat, lon] pair", i))
			}
		}
		if n := c.Geofence.ServicePolygon().DistinctVertices(); n < 3 {
			errs = append(errs, fmt.Sprintf("geofence.polygon needs at least 3 distinct vertices, got %d", n))
		}
	}
	if c.Wizard.MinLeadTime < 0 {
		errs = append(errs, "wizard.min_lead_time must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ServicePolygon converts the configured [lat, lon] pairs into a polygon.
func (g GeofenceConfig) ServicePolygon() domain.Polygon {
	vs := make([]domain.GeoPoint, 0, len(g.Polygon))
	for _, p := range g.Polygon {
		if len(p) == 2 {
			vs = append(vs, domain.GeoPoint{Lat: p[0], Lon: p[1]})
		}
	}
	return domain.Polygon{Vertices: vs}
}
