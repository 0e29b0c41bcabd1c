package flowstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors translated by the root package into the public status
// code taxonomy.
var (
	ErrFlowNotFound     = errors.New("flowstore: flow not found")
	ErrFlowAlreadyExists = errors.New("flowstore: flow already exists")
	ErrPermissionDenied = errors.New("flowstore: domain not writable")
	ErrWriterActive     = errors.New("flowstore: writer already active")
)

// Manager mediates all filesystem access to a single domain directory.
type Manager struct {
	domain string
}

// Open validates that domain exists and is a directory, returning a
// Manager bound to it.
func Open(domain string) (*Manager, error) {
	abs, err := filepath.Abs(domain)
	if err != nil {
		return nil, fmt.Errorf("flowstore: %w", err)
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("flowstore: domain %q: %w", domain, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("flowstore: domain %q is not a directory", domain)
	}
	return &Manager{domain: abs}, nil
}

// Domain returns the absolute path this Manager is bound to.
func (m *Manager) Domain() string { return m.domain }

// PreparedFlow is a staged, not-yet-published flow directory: its
// descriptor and options files are written, and its data file is ready to
// be sized and mapped by the caller. It lives in a hidden staging directory
// inside the domain that List ignores; nothing exists yet at the flow's own
// directory. Publish moves it into place; Abort discards it.
type PreparedFlow struct {
	manager *Manager
	id      uuid.UUID
	tempDir string
	dataF   *os.File
}

// Prepare creates a temporary flow directory (not yet visible under the
// domain) and writes the descriptor and options files into it. The caller
// opens PreparedFlow.DataFile() to size and initialize the region, then
// calls Publish to make the flow visible atomically, or Abort to discard
// it on error.
func (m *Manager) Prepare(id uuid.UUID, descriptorJSON, optionsJSON []byte) (*PreparedFlow, error) {
	tempDir, err := os.MkdirTemp(m.domain, tempDirPrefix)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, ErrPermissionDenied
		}
		return nil, fmt.Errorf("flowstore: mkdir temp: %w", err)
	}

	p := &PreparedFlow{manager: m, id: id, tempDir: tempDir}
	if err := os.WriteFile(filepath.Join(tempDir, descriptorFileName), descriptorJSON, 0o644); err != nil {
		p.Abort()
		return nil, fmt.Errorf("flowstore: write descriptor: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, optionsFileName), optionsJSON, 0o644); err != nil {
		p.Abort()
		return nil, fmt.Errorf("flowstore: write options: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(tempDir, dataFileName), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		p.Abort()
		return nil, fmt.Errorf("flowstore: create data file: %w", err)
	}
	p.dataF = f
	return p, nil
}

// DataFile returns the open, empty data file for the caller to truncate,
// map, and initialize.
func (p *PreparedFlow) DataFile() *os.File { return p.dataF }

// Publish makes the flow visible in the domain directory by renaming the
// temporary directory into place. If a flow with this id already exists,
// it is replaced: the previous directory is evicted first so existing
// readers keep their mapping (and see it marked INVALID) while new readers
// see only the fresh flow.
func (p *PreparedFlow) Publish() error {
	if p.dataF != nil {
		p.dataF.Close()
		p.dataF = nil
	}
	finalDir := FlowDir(p.manager.domain, p.id)
	if _, err := os.Stat(finalDir); err == nil {
		if err := os.RemoveAll(finalDir); err != nil {
			return fmt.Errorf("flowstore: evict existing flow: %w", err)
		}
	}
	if err := os.Rename(p.tempDir, finalDir); err != nil {
		return fmt.Errorf("flowstore: publish flow: %w", err)
	}
	return nil
}

// Abort discards a prepared flow, removing its temporary directory.
func (p *PreparedFlow) Abort() error {
	if p.dataF != nil {
		p.dataF.Close()
		p.dataF = nil
	}
	return os.RemoveAll(p.tempDir)
}

// OpenDataFile opens an existing flow's data file for read-write mapping.
func (m *Manager) OpenDataFile(id uuid.UUID) (*os.File, error) {
	f, err := os.OpenFile(DataPath(m.domain, id), os.O_RDWR, 0o644)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFlowNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("flowstore: open data file: %w", err)
	}
	return f, nil
}

// ReadDescriptor returns the exact bytes of a flow's original descriptor.
func (m *Manager) ReadDescriptor(id uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(DescriptorPath(m.domain, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFlowNotFound
	}
	return data, err
}

// Destroy unlinks a flow's directory. Returns ErrFlowNotFound if the flow
// does not exist, matching the "second call returns not-found" rule.
func (m *Manager) Destroy(id uuid.UUID) error {
	dir := FlowDir(m.domain, id)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return ErrFlowNotFound
	}
	return os.RemoveAll(dir)
}

// List enumerates the flow UUIDs currently present in the domain.
func (m *Manager) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(m.domain)
	if err != nil {
		return nil, fmt.Errorf("flowstore: list domain: %w", err)
	}
	var ids []uuid.UUID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, err := uuid.Parse(e.Name())
		if err != nil {
			continue // not a flow directory
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// FlowHeartbeat reports what GarbageCollectFlows needs to decide whether a
// flow directory is abandoned.
type FlowHeartbeat struct {
	ID            uuid.UUID
	WriterActive  bool
	LastWriteTime time.Time
}

// GarbageCollectFlows removes flow directories whose writer is not active
// and whose last heartbeat is older than maxAge. heartbeats is supplied by
// the caller (the root package), which alone knows how to read a flow's
// header to determine liveness; this keeps flowstore free of any
// dependency on the region package.
func (m *Manager) GarbageCollectFlows(heartbeats []FlowHeartbeat, maxAge time.Duration, now time.Time) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	for _, hb := range heartbeats {
		if hb.WriterActive {
			continue
		}
		if now.Sub(hb.LastWriteTime) < maxAge {
			continue
		}
		if err := m.Destroy(hb.ID); err != nil && !errors.Is(err, ErrFlowNotFound) {
			return removed, fmt.Errorf("flowstore: gc %s: %w", hb.ID, err)
		}
		removed = append(removed, hb.ID)
	}
	return removed, nil
}
