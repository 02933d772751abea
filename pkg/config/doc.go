// Package config loads service settings from defaults, an optional YAML
// file and MMRT_* environment variables (REDIS_URL is unprefixed).
package config
