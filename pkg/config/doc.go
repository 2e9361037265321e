// Package config loads the LeadForge application configuration from YAML
// with LEADFORGE_* environment variable overrides.
package config
