// Package config loads the forwarder configuration from an optional YAML file
// and environment variables. Defaults reproduce the lab topology: listen on
// 0.0.0.0:80 and forward to three backends on port 80 with no timeouts.
package config
