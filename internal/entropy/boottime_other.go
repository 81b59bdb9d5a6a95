//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package entropy

import "time"

func bootTime() (time.Time, error) {
	return time.Time{}, ErrSourceUnavailable
}
