//go:build linux

package framez

import "golang.org/x/sys/unix"

// osThreadID returns the kernel id of the calling thread.
func osThreadID() int {
	return unix.Gettid()
}
