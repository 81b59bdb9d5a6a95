//go:build linux

package entropy

import (
	"time"

	"golang.org/x/sys/unix"
)

func bootTime() (time.Time, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return time.Time{}, err
	}
	uptime := time.Duration(info.Uptime) * time.Second
	return time.Now().Add(-uptime), nil
}
