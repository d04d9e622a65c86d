// Package config loads gateway configuration from a yaml file with
// environment-variable overrides, via viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Rule holds the warn/crit cutoffs configured for one metric.
type Rule struct {
	Warn float64 `mapstructure:"warn"`
	Crit float64 `mapstructure:"crit"`
}

// User is a dashboard login with a bcrypt password hash.
type User struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
	Role         string `mapstructure:"role"`
}

// SiteSeed provisions one site at startup.
type SiteSeed struct {
	ID      string  `mapstructure:"id"`
	Name    string  `mapstructure:"name"`
	Lat     float64 `mapstructure:"lat"`
	Lon     float64 `mapstructure:"lon"`
	Address string  `mapstructure:"address"`
}

// CrewSeed provisions one crew at startup. Crews must exist before they can
// report positions, so deployments typically seed their roster here.
type CrewSeed struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Role   string `mapstructure:"role"`
	Status string `mapstructure:"status"`
}

// Config is the full gateway configuration.
type Config struct {
	App struct {
		Name string `mapstructure:"name"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Server struct {
		DataPort      int `mapstructure:"data_port"`
		DashboardPort int `mapstructure:"dashboard_port"`
	} `mapstructure:"server"`
	Buffers struct {
		History    int `mapstructure:"history"`
		Track      int `mapstructure:"track"`
		Advisories int `mapstructure:"advisories"`
		Subscriber int `mapstructure:"subscriber"`
	} `mapstructure:"buffers"`
	Stream struct {
		KeepAliveSeconds int `mapstructure:"keepalive_seconds"`
	} `mapstructure:"stream"`
	Auth struct {
		DeviceToken   string `mapstructure:"device_token"`
		MobileKey     string `mapstructure:"mobile_key"`
		JWTSecret     string `mapstructure:"jwt_secret"`
		JWTExpiration int    `mapstructure:"jwt_expiration"` // minutes
		Users         []User `mapstructure:"users"`
	} `mapstructure:"auth"`
	Thresholds map[string]map[string]Rule `mapstructure:"thresholds"`
	Sites      []SiteSeed                 `mapstructure:"sites"`
	Crews      []CrewSeed                 `mapstructure:"crews"`
	Routing    struct {
		Endpoint       string `mapstructure:"endpoint"`
		APIKey         string `mapstructure:"api_key"`
		TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	} `mapstructure:"routing"`
}

// Load reads config.yaml from path, applies defaults and env overrides, and
// decodes the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix("gateway")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing file is fine, defaults plus env carry a dev setup.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fieldops-gateway")
	v.SetDefault("app.env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.data_port", 8080)
	v.SetDefault("server.dashboard_port", 8081)
	v.SetDefault("buffers.history", 5000)
	v.SetDefault("buffers.track", 5000)
	v.SetDefault("buffers.advisories", 500)
	v.SetDefault("buffers.subscriber", 64)
	v.SetDefault("stream.keepalive_seconds", 15)
	v.SetDefault("auth.device_token", "dev-device-token")
	v.SetDefault("auth.mobile_key", "dev-mobile-key")
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_expiration", 60)
	v.SetDefault("routing.endpoint", "https://api.openrouteservice.org/v2/directions/driving-car")
	v.SetDefault("routing.timeout_seconds", 5)
}
