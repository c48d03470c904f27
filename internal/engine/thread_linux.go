//go:build linux

package engine

import "golang.org/x/sys/unix"

// currentThreadID identifies the calling OS thread. Callers lock their
// goroutine to the thread first, so the id is stable for that goroutine.
func currentThreadID() int64 {
	return int64(unix.Gettid())
}
