// Package config loads the hook binaries' configuration: defaults first,
// then an optional YAML overlay.
package config
