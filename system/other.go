//go:build !unix && !windows

package system

import "time"

func processCPUTime() (time.Duration, error) {
	return 0, ErrUnavailable
}
