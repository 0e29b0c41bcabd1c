package flowstore

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return m
}

func TestPrepareAndPublish(t *testing.T) {
	m := newTestManager(t)
	id := uuid.New()

	p, err := m.Prepare(id, []byte(`{"id":"x"}`), []byte(`{}`))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := p.DataFile().Write([]byte("hello")); err != nil {
		t.Fatalf("write data file: %v", err)
	}
	if err := p.Publish(); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	descriptor, err := m.ReadDescriptor(id)
	if err != nil {
		t.Fatalf("ReadDescriptor: %v", err)
	}
	if string(descriptor) != `{"id":"x"}` {
		t.Fatalf("descriptor = %q", descriptor)
	}

	ids, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("List = %v, want [%v]", ids, id)
	}
}

func TestPublishReplacesExistingFlow(t *testing.T) {
	m := newTestManager(t)
	id := uuid.New()

	p1, _ := m.Prepare(id, []byte(`{"v":1}`), []byte(`{}`))
	p1.DataFile().Write([]byte("v1"))
	if err := p1.Publish(); err != nil {
		t.Fatalf("first Publish: %v", err)
	}

	p2, _ := m.Prepare(id, []byte(`{"v":2}`), []byte(`{}`))
	p2.DataFile().Write([]byte("v2"))
	if err := p2.Publish(); err != nil {
		t.Fatalf("second Publish: %v", err)
	}

	descriptor, _ := m.ReadDescriptor(id)
	if string(descriptor) != `{"v":2}` {
		t.Fatalf("descriptor = %q, want second version", descriptor)
	}
}

func TestAbortRemovesTempDir(t *testing.T) {
	m := newTestManager(t)
	id := uuid.New()

	p, err := m.Prepare(id, []byte("{}"), []byte("{}"))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	tempDir := p.tempDir
	if err := p.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Fatalf("temp dir %s still exists after Abort", tempDir)
	}
	if ids, _ := m.List(); len(ids) != 0 {
		t.Fatalf("List = %v, want empty (aborted flow must not be visible)", ids)
	}
}

func TestDestroyReturnsNotFoundOnSecondCall(t *testing.T) {
	m := newTestManager(t)
	id := uuid.New()
	p, _ := m.Prepare(id, []byte("{}"), []byte("{}"))
	p.Publish()

	if err := m.Destroy(id); err != nil {
		t.Fatalf("first Destroy: %v", err)
	}
	if err := m.Destroy(id); err != ErrFlowNotFound {
		t.Fatalf("second Destroy: got %v, want ErrFlowNotFound", err)
	}
}

func TestGarbageCollectFlows(t *testing.T) {
	m := newTestManager(t)
	alive := uuid.New()
	dead := uuid.New()
	for _, id := range []uuid.UUID{alive, dead} {
		p, _ := m.Prepare(id, []byte("{}"), []byte("{}"))
		p.Publish()
	}

	now := time.Now()
	heartbeats := []FlowHeartbeat{
		{ID: alive, WriterActive: true, LastWriteTime: now.Add(-time.Hour)},
		{ID: dead, WriterActive: false, LastWriteTime: now.Add(-time.Hour)},
	}
	removed, err := m.GarbageCollectFlows(heartbeats, 5*time.Minute, now)
	if err != nil {
		t.Fatalf("GarbageCollectFlows: %v", err)
	}
	if len(removed) != 1 || removed[0] != dead {
		t.Fatalf("removed = %v, want [%v]", removed, dead)
	}

	ids, _ := m.List()
	if len(ids) != 1 || ids[0] != alive {
		t.Fatalf("surviving flows = %v, want [%v]", ids, alive)
	}
}

func TestWriterLockExcludesConcurrentWriter(t *testing.T) {
	m := newTestManager(t)
	id := uuid.New()
	p, _ := m.Prepare(id, []byte("{}"), []byte("{}"))
	p.Publish()

	lockPath := LockPath(m.Domain(), id)
	lock, err := AcquireWriterLock(lockPath)
	if err != nil {
		t.Fatalf("AcquireWriterLock: %v", err)
	}

	if _, err := AcquireWriterLock(lockPath); err != ErrWriterActive {
		t.Fatalf("second AcquireWriterLock: got %v, want ErrWriterActive", err)
	}

	locked, err := IsLocked(lockPath)
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked {
		t.Fatal("IsLocked = false, want true while lock held")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	locked, err = IsLocked(lockPath)
	if err != nil {
		t.Fatalf("IsLocked after release: %v", err)
	}
	if locked {
		t.Fatal("IsLocked = true, want false after release")
	}
}
