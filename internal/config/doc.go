// Package config loads the relay-mcp YAML configuration with environment
// variable expansion and duration parsing.
package config
