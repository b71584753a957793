// Package config loads typed configuration from environment variables.
//
// Every component owns a small Config struct tagged for caarlos0/env. Load parses
// it once per type and caches the result; a .env file in the working directory is
// read on first use so local development does not need exported variables.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config
