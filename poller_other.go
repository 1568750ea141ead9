//go:build !linux

package actorloop

import "errors"

// errPlatformUnsupported is returned by the non-Linux poller stub. The
// runtime's epoll integration (poller_linux.go) is grounded on the
// teacher's FastPoller, which is itself Linux-only; no pack example offers
// a kqueue or IOCP equivalent to ground a port against, so other platforms
// get an explicit error instead of a silently-inert poller.
var errPlatformUnsupported = errors.New("actorloop: no poller implementation for this platform")

type unsupportedPoller struct{}

func (unsupportedPoller) Init() error                                    { return errPlatformUnsupported }
func (unsupportedPoller) Close() error                                   { return nil }
func (unsupportedPoller) RegisterFD(int, IOEvents, IOCallback) error      { return errPlatformUnsupported }
func (unsupportedPoller) UnregisterFD(int) error                         { return errPlatformUnsupported }
func (unsupportedPoller) ModifyFD(int, IOEvents) error                   { return errPlatformUnsupported }
func (unsupportedPoller) PollIO(int) (int, error)                        { return 0, errPlatformUnsupported }

func newPlatformPoller() poller {
	return unsupportedPoller{}
}
