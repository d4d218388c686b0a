// Package config handles loading and validation of application
// configuration. Values come from defaults, an optional config file, and
// DOCEX_-prefixed environment variables, with the environment taking
// precedence.
package config
