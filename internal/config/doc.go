// Package config loads tailortalk configuration from a YAML file and the
// environment. Precedence is: command line flags (applied by cmd), then
// environment variables, then the file, then DefaultConfig.
package config
