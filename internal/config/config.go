// Package config loads service configuration from defaults, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	PhotoBackendLocal      = "local"
	PhotoBackendCloudinary = "cloudinary"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	DB          DBConfig          `koanf:"db"`
	JWT         JWTConfig         `koanf:"jwt"`
	OIDC        OIDCConfig        `koanf:"oidc"`
	Webhook     WebhookConfig     `koanf:"webhook"`
	Attendance  AttendanceConfig  `koanf:"attendance"`
	Photo       PhotoConfig       `koanf:"photo"`
	Cloudinary  CloudinaryConfig  `koanf:"cloudinary"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
	Log         LogConfig         `koanf:"log"`
}

type ServerConfig struct {
	Port            string        `koanf:"port"`
	GinMode         string        `koanf:"gin_mode"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DBConfig struct {
	Host     string `koanf:"host"`
	Port     string `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// DSN builds the postgres connection string
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type JWTConfig struct {
	Secret string `koanf:"secret"`
}

// OIDCConfig switches session lookup to ID tokens of an OpenID provider when Issuer is set
type OIDCConfig struct {
	Issuer   string `koanf:"issuer"`
	ClientID string `koanf:"client_id"`
}

type WebhookConfig struct {
	SigningSecret string `koanf:"signing_secret"`
}

type AttendanceConfig struct {
	TimeZone string `koanf:"timezone"`
}

type PhotoConfig struct {
	Backend       string        `koanf:"backend"`
	Root          string        `koanf:"root"`
	ServeRoot     string        `koanf:"serve_root"`
	MaxBytes      int64         `koanf:"max_bytes"`
	OrphanTTL     time.Duration `koanf:"orphan_ttl"`
	SweepSchedule string        `koanf:"sweep_schedule"`
}

type CloudinaryConfig struct {
	URL    string `koanf:"url"`
	Folder string `koanf:"folder"`
}

type MaintenanceConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "debug",
			CORSOrigins:     []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"},
			ShutdownTimeout: 10 * time.Second,
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "postgres",
			SSLMode:  "disable",
		},
		Attendance: AttendanceConfig{TimeZone: "Asia/Ho_Chi_Minh"},
		Photo: PhotoConfig{
			Backend:       PhotoBackendLocal,
			Root:          "data/photos",
			ServeRoot:     "http://localhost:8080/photos",
			MaxBytes:      10 << 20,
			OrphanTTL:     24 * time.Hour,
			SweepSchedule: "@hourly",
		},
		Cloudinary: CloudinaryConfig{Folder: "attendance"},
		Log:        LogConfig{Level: "info"},
	}
}

// envToPath maps the environment variables we read to config paths. Anything else in the
// environment is ignored.
var envToPath = map[string]string{
	"PORT":                   "server.port",
	"GIN_MODE":               "server.gin_mode",
	"CORS_ORIGINS":           "server.cors_origins",
	"SHUTDOWN_TIMEOUT":       "server.shutdown_timeout",
	"DB_HOST":                "db.host",
	"DB_PORT":                "db.port",
	"DB_USER":                "db.user",
	"DB_PASSWORD":            "db.password",
	"DB_NAME":                "db.name",
	"DB_SSLMODE":             "db.sslmode",
	"JWT_SECRET":             "jwt.secret",
	"OIDC_ISSUER":            "oidc.issuer",
	"OIDC_CLIENT_ID":         "oidc.client_id",
	"WEBHOOK_SIGNING_SECRET": "webhook.signing_secret",
	"ATTENDANCE_TIMEZONE":    "attendance.timezone",
	"PHOTO_BACKEND":          "photo.backend",
	"PHOTO_ROOT":             "photo.root",
	"PHOTO_SERVE_ROOT":       "photo.serve_root",
	"PHOTO_MAX_BYTES":        "photo.max_bytes",
	"PHOTO_ORPHAN_TTL":       "photo.orphan_ttl",
	"PHOTO_SWEEP_SCHEDULE":   "photo.sweep_schedule",
	"CLOUDINARY_URL":         "cloudinary.url",
	"CLOUDINARY_FOLDER":      "cloudinary.folder",
	"MAINTENANCE_ENABLED":    "maintenance.enabled",
	"LOG_LEVEL":              "log.level",
	"LOG_JSON":               "log.json",
}

// Load reads .env files (if any) and builds the configuration from defaults and environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		// Missing .env files are fine, the process environment may carry everything
		_ = godotenv.Load(f)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: "",
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envToPath[key]
			if !ok {
				return "", nil
			}
			return path, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// IsRelease reports whether gin runs in release mode
func (c *Config) IsRelease() bool {
	return c.Server.GinMode == "release"
}

func (c *Config) Validate() error {
	var errs []error

	if c.IsRelease() && c.JWT.Secret == "" && c.OIDC.Issuer == "" {
		errs = append(errs, errors.New("JWT_SECRET or OIDC_ISSUER is required in release mode"))
	}
	if c.OIDC.Issuer != "" && c.OIDC.ClientID == "" {
		errs = append(errs, errors.New("OIDC_CLIENT_ID is required when OIDC_ISSUER is set"))
	}
	if _, err := time.LoadLocation(c.Attendance.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("invalid attendance time zone %q", c.Attendance.TimeZone))
	}

	switch strings.ToLower(c.Photo.Backend) {
	case PhotoBackendLocal:
		// Local photos are served from the path of this url, so it needs one
		u, err := url.Parse(c.Photo.ServeRoot)
		if err != nil || strings.Trim(u.Path, "/") == "" {
			errs = append(errs, fmt.Errorf("invalid photo serve root %q", c.Photo.ServeRoot))
		}
	case PhotoBackendCloudinary:
		if c.Cloudinary.URL == "" {
			errs = append(errs, errors.New("CLOUDINARY_URL is required for the cloudinary photo backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown photo backend %q", c.Photo.Backend))
	}
	if c.Photo.MaxBytes <= 0 {
		errs = append(errs, errors.New("photo max bytes must be positive"))
	}
	if c.Photo.OrphanTTL <= 0 {
		errs = append(errs, errors.New("photo orphan ttl must be positive"))
	}

	return errors.Join(errs...)
}
