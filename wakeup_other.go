//go:build !linux

package actorloop

func newWakeFD() (int, error) { return -1, errPlatformUnsupported }
func writeWakeFD(int) error   { return errPlatformUnsupported }
func drainWakeFD(int)         {}
func closeWakeFD(int)         {}
