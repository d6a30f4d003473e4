// Package config loads finrag configuration with layered precedence:
// explicit options > environment variables > YAML file > built-in defaults.
package config
