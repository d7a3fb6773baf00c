// Package testsupport builds temp-dir configurations, stub host commands, and
// fake floppy contents for package and CLI tests.
package testsupport
