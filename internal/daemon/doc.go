// Package daemon coordinates the long-running hoard process.
//
// The Controller is a single sequential polling loop: each iteration resolves
// the floppy drive and the backup stick, checks for a disk, and applies the
// two-state cycle machine (Idle, Copied) so a disk is backed up exactly once
// per insertion. A udev netlink monitor may wake the loop early but never
// runs a backup itself. Daemon wraps the controller with flock-based locking
// to prevent multiple instances racing on the shared mount points.
package daemon
