package region

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Mapping is a scoped handle over a memory-mapped region file. Its lifetime
// is independent of any single process: Close releases this process's
// mapping without unlinking the underlying file, since the region is owned
// by the flow, not by whichever process happens to have it open.
type Mapping struct {
	file  *os.File
	Bytes []byte
	Inode uint64
}

// Create truncates f to size, zero-fills it, and maps it read-write shared.
// The caller retains ownership of f; closing the Mapping does not close f.
func Create(f *os.File, size int) (*Mapping, error) {
	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("region: truncate: %w", err)
	}
	return mapFile(f, size, unix.PROT_READ|unix.PROT_WRITE)
}

// Open maps an existing region file, sized to its current length, for
// read-write access.
func Open(f *os.File) (*Mapping, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("region: stat: %w", err)
	}
	return mapFile(f, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE)
}

func mapFile(f *os.File, size int, prot int) (*Mapping, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("region: stat: %w", err)
	}
	buf, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("region: mmap: %w", err)
	}

	sysStat, ok := st.Sys().(*syscall.Stat_t)
	var inode uint64
	if ok {
		inode = sysStat.Ino
	}
	return &Mapping{file: f, Bytes: buf, Inode: inode}, nil
}

// Close unmaps the region from this process's address space. It does not
// unlink the backing file.
func (m *Mapping) Close() error {
	if m.Bytes == nil {
		return nil
	}
	err := unix.Munmap(m.Bytes)
	m.Bytes = nil
	return err
}

// StatInode returns the current inode number backing path, used by readers
// to detect that a flow's data file was unlinked and re-created under them.
func StatInode(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, err
	}
	return st.Ino, nil
}
