package transport

import "time"

func timeoutChan() <-chan time.Time {
	return time.After(2 * time.Second)
}
