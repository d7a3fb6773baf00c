// Package config loads, normalizes, and validates hoard configuration data.
//
// It supplies defaults for every device threshold, mount point, and polling
// interval, expands user paths (including tilde shortcuts), and reads an
// optional TOML file. A missing file is not an error: the daemon runs on
// defaults, which is how it is normally deployed on a headless Pi.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
