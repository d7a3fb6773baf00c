// Package backup copies an inserted floppy to the next numbered folder on the
// backup stick.
//
// The Orchestrator mounts both devices, asks the Sequencer for the next
// <tag>_NNN folder under the stick's base directory, copies the floppy with a
// Copier, and unmounts both points on every exit path. Copy errors are
// collected per entry rather than aborting the walk; whether they fail the
// attempt is a configuration choice (backup.strict_copy).
package backup
