//go:build !linux

package framez

// osThreadID is not available on this platform.
func osThreadID() int {
	return 0
}
