package wayland

import "syscall"

func closeFD(fd int) {
	if fd >= 0 {
		syscall.Close(fd) //nolint:errcheck
	}
}
