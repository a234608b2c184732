//go:build unix

package system

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// processCPUTime 通过 getrusage 读取本进程CPU时间
func processCPUTime() (time.Duration, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("getrusage: %w", err)
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), nil
}
