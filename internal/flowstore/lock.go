package flowstore

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// WriterLock is an advisory exclusive lock on a flow's writer.lock
// sentinel, held for the lifetime of a single active FlowWriter. It is
// released automatically by the OS if the holding process dies, which is
// what lets IsFlowActive detect a dead writer without a heartbeat.
type WriterLock struct {
	file *os.File
}

// AcquireWriterLock takes an exclusive, non-blocking advisory lock on path.
// It returns ErrWriterActive if another process already holds it.
func AcquireWriterLock(path string) (*WriterLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flowstore: open writer lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrWriterActive
		}
		return nil, fmt.Errorf("flowstore: flock: %w", err)
	}
	return &WriterLock{file: f}, nil
}

// Release drops the lock and closes the underlying file descriptor.
func (l *WriterLock) Release() error {
	if l.file == nil {
		return nil
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}

// IsLocked reports whether path is currently held by an exclusive lock,
// without taking or releasing the lock itself. It opens a private,
// short-lived file descriptor purely to probe lock state.
func IsLocked(path string) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if err == unix.EWOULDBLOCK {
			return true, nil
		}
		return false, err
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false, nil
}
