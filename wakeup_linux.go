//go:build linux

package actorloop

import "golang.org/x/sys/unix"

// newWakeFD creates an eventfd used to interrupt a worker blocked in
// PollIO from another goroutine (a Waker fired cross-thread, a Runtime
// shutdown request). Grounded on the teacher's wakeup_linux.go, which uses
// the same primitive for loop.go's cross-thread submitWakeup path.
func newWakeFD() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

func writeWakeFD(fd int) error {
	var buf [8]byte
	buf[0] = 1
	_, err := unix.Write(fd, buf[:])
	if err == unix.EAGAIN {
		// Counter already non-zero (a wakeup is already pending); the
		// worker will observe it on its next drain regardless.
		return nil
	}
	return err
}

func drainWakeFD(fd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(fd, buf[:]); err != nil {
			return
		}
	}
}

func closeWakeFD(fd int) {
	_ = unix.Close(fd)
}
