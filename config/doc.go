// Package config loads database options from YAML files, environment
// variables and in-memory maps, and notifies subscribers when they change.
package config
