// Package device enumerates attached block devices and decides which one is
// the USB floppy drive and which one is the backup stick.
//
// Enumeration shells out to lsblk and decodes its JSON tree; classification is
// a pure function over that tree so it can be exercised without hardware. A
// role that matches zero or several devices stays unresolved for the poll.
package device
