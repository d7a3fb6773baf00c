// Package main hosts the hoard CLI entrypoint and command graph.
//
// `hoard run` starts the backup daemon under the service manager wrapper;
// the remaining commands are operator tools that reuse the same internal
// packages: inspecting attached devices, probing the drive, forcing a single
// backup, and scaffolding configuration and the systemd unit.
package main
