// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Session   SessionConfig   `mapstructure:"session"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Location  LocationConfig  `mapstructure:"location"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Hazards   HazardsConfig   `mapstructure:"hazards"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// SessionConfig controls the session store. Durations are milliseconds.
type SessionConfig struct {
	StorageKey        string `mapstructure:"storage_key"`
	TTL               int    `mapstructure:"ttl"`
	AuthSettleTimeout int    `mapstructure:"auth_settle_timeout"`
}

// StorageConfig selects the durable local key/value store.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite | redis | memory
	SQLitePath string `mapstructure:"sqlite_path"`
}

// DatabaseConfig holds the remote backends. Documents selects the document
// database driver: mongo | postgres | memory.
type DatabaseConfig struct {
	Documents     string              `mapstructure:"documents"`
	Mongo         MongoConfig         `mapstructure:"mongo"`
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Enabled reports whether a search backend was configured at all.
func (e ElasticsearchConfig) Enabled() bool {
	return e.GetURL() != ""
}

// AuthConfig holds the authentication provider settings.
type AuthConfig struct {
	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		Timeout      int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"keycloak"`
}

// Enabled reports whether an authentication provider is configured.
func (a AuthConfig) Enabled() bool {
	return a.Keycloak.URL != ""
}

// LocationConfig holds the resolver's bounded waits (milliseconds), the IP
// lookup endpoint, the static fallback viewport and the host device.
type LocationConfig struct {
	PermissionTimeout int            `mapstructure:"permission_timeout"`
	PositionTimeout   int            `mapstructure:"position_timeout"`
	IPTimeout         int            `mapstructure:"ip_timeout"`
	CountryTimeout    int            `mapstructure:"country_timeout"`
	IPEndpoint        string         `mapstructure:"ip_endpoint"`
	Default           ViewportConfig `mapstructure:"default"`
	Device            DeviceConfig   `mapstructure:"device"`
}

type ViewportConfig struct {
	Name           string  `mapstructure:"name"`
	Latitude       float64 `mapstructure:"latitude"`
	Longitude      float64 `mapstructure:"longitude"`
	LatitudeDelta  float64 `mapstructure:"latitude_delta"`
	LongitudeDelta float64 `mapstructure:"longitude_delta"`
}

// DeviceConfig describes a headless host's location capabilities.
type DeviceConfig struct {
	ServicesEnabled   bool    `mapstructure:"services_enabled"`
	PermissionGranted bool    `mapstructure:"permission_granted"`
	HasPosition       bool    `mapstructure:"has_position"`
	Latitude          float64 `mapstructure:"latitude"`
	Longitude         float64 `mapstructure:"longitude"`
	CountryCode       string  `mapstructure:"country_code"`
}

// GeocodingConfig holds the address search API settings.
type GeocodingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
	Limit   int    `mapstructure:"limit"`
}

type HazardsConfig struct {
	Index           string  `mapstructure:"index"`
	DefaultRadiusKm float64 `mapstructure:"default_radius_km"`
	MaxResults      int     `mapstructure:"max_results"`
}

type MetricsConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
}
