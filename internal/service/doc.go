// Package service runs hoard under the host service manager.
//
// Manager wraps kardianos/service: it generates a systemd unit that restarts
// the daemon on exit and runs it as root, and it drives the daemon through
// the service Start/Stop callbacks so SIGTERM from systemd and Ctrl-C in a
// terminal take the same shutdown path.
package service
