// Package config loads typed configuration from environment variables and
// optional dotenv files, using github.com/caarlos0/env struct tags.
package config
