package main

import "github.com/caarlos0/env/v11"

// Config holds environment-driven settings. Flags in main override these.
type Config struct {
	Addr                 string `env:"GEOTAG_ADDR" envDefault:":8080"`
	DBPath               string `env:"GEOTAG_DB" envDefault:"geotag.db"`
	PlayerTokenTTLHours  int    `env:"GEOTAG_PLAYER_TOKEN_TTL" envDefault:"24"`
	SessionTokenTTLHours int    `env:"GEOTAG_SESSION_TOKEN_TTL" envDefault:"8760"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
