package utils

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const rootUID = 0

// CheckRootPrivs verifies the process runs with root privileges.
// Bootstrap writes under the install path and talks to the container
// runtime socket, both of which are root-owned on a stock host.
func CheckRootPrivs() error {
	_, euid, suid := unix.Getresuid()
	if euid != rootUID && suid != rootUID {
		return fmt.Errorf("this command requires root privileges to run, effective UID: %v SUID: %v", euid, suid)
	}
	return nil
}
