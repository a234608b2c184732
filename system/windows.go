//go:build windows

package system

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows"
)

// processCPUTime 通过 GetProcessTimes 读取本进程CPU时间
func processCPUTime() (time.Duration, error) {
	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(windows.CurrentProcess(), &creation, &exit, &kernel, &user); err != nil {
		return 0, fmt.Errorf("GetProcessTimes: %w", err)
	}
	return filetimeDuration(kernel) + filetimeDuration(user), nil
}

// FILETIME 以 100ns 为单位
func filetimeDuration(ft windows.Filetime) time.Duration {
	ticks := uint64(ft.HighDateTime)<<32 | uint64(ft.LowDateTime)
	return time.Duration(ticks * 100)
}
