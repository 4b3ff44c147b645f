//go:build !linux

package hardware

import "errors"

// GpiocdevLines is not available on non-Linux platforms.
type GpiocdevLines struct{}

var errGpiocdevUnsupported = errors.New("gpiocdev: not supported on this platform (requires Linux)")

// OpenGpiocdevLines returns an error on non-Linux platforms.
func OpenGpiocdevLines(string, []int) (*GpiocdevLines, error) {
	return nil, errGpiocdevUnsupported
}

// Count is zero on non-Linux platforms.
func (g *GpiocdevLines) Count() int {
	return 0
}

// Read is not implemented on non-Linux platforms.
func (g *GpiocdevLines) Read(int) (bool, error) {
	return false, errGpiocdevUnsupported
}

// Close is a no-op on non-Linux platforms.
func (g *GpiocdevLines) Close() error {
	return nil
}
