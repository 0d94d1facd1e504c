// Package devices enumerates video capture devices and maps the identifiers
// handed to clients back to device nodes.
//
// Enumeration reads /sys/class/video4linux and the udev symlink farms under
// /dev/v4l. A device's ID is its /dev/v4l/by-id name when one exists, then its
// /dev/v4l/by-path name, then the node path itself, so the ID stays stable
// across reboots whenever udev can make it so.
//
// Clients see devices as unique names of the form "<display name>:<id>".
package devices
