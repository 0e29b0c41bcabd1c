package mxl

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mlefebvre1/mxl/internal/flow"
	"github.com/mlefebvre1/mxl/internal/flowstore"
	"github.com/mlefebvre1/mxl/internal/rational"
	"github.com/mlefebvre1/mxl/internal/region"
	internalreader "github.com/mlefebvre1/mxl/internal/reader"
	"github.com/mlefebvre1/mxl/internal/status"
	"github.com/mlefebvre1/mxl/internal/timing"
	internalwriter "github.com/mlefebvre1/mxl/internal/writer"
)

// Instance mediates access to a single domain directory: it creates and
// destroys flows, and opens readers and writers against them. An Instance
// holds no OS resources of its own beyond the domain path; Close exists to
// mirror destroyInstance and allow future resource cleanup without
// breaking callers.
type Instance struct {
	store                *flowstore.Manager
	log                  *slog.Logger
	heartbeatThresholdNs uint64
}

// CreateInstance binds an Instance to domain, which must already exist.
// optsJSON configures instance-wide behavior (currently just
// urn:x-mxl:option:heartbeat_threshold/v1.0, a u64 nanosecond value
// defaulting to 5s); pass nil for defaults.
func CreateInstance(domain string, optsJSON []byte) (*Instance, error) {
	store, err := flowstore.Open(domain)
	if err != nil {
		return nil, status.Wrap(status.Internal, err)
	}
	threshold, err := parseInstanceOptions(optsJSON)
	if err != nil {
		return nil, status.Wrap(status.InvalidArg, err)
	}
	return &Instance{store: store, log: slog.Default(), heartbeatThresholdNs: threshold}, nil
}

// SetLogger overrides the logger used for lifecycle events. The hot
// read/write path never logs, regardless of this setting.
func (inst *Instance) SetLogger(log *slog.Logger) {
	if log != nil {
		inst.log = log
	}
}

// Close releases the Instance. It does not touch the domain directory or
// any flow within it.
func (inst *Instance) Close() error { return nil }

// Domain returns the absolute path of the bound domain directory.
func (inst *Instance) Domain() string { return inst.store.Domain() }

// ListFlows enumerates the flow ids currently present in the domain.
func (inst *Instance) ListFlows() ([]uuid.UUID, error) {
	ids, err := inst.store.List()
	if err != nil {
		return nil, status.Wrap(status.Internal, err)
	}
	return ids, nil
}

// Watch starts watching the domain directory for flow creation and
// destruction; see flowstore.WatchDomain. Liveness reported through it is
// a hint, not authoritative — callers should re-list to confirm.
func (inst *Instance) Watch() (*flowstore.Watcher, error) {
	return flowstore.WatchDomain(inst.store, inst.log)
}

// CreateFlow validates descriptorJSON, derives the region's sizes from it
// and optionsJSON's history_duration, and materializes the flow under the
// domain. If a flow with the same id already exists, the previous region
// is marked FLOW_INVALID before being replaced, so any reader still
// holding the old mapping observes the invalidation on its next call.
func (inst *Instance) CreateFlow(descriptorJSON, optionsJSON []byte) (uuid.UUID, error) {
	fl, err := flow.Parse(descriptorJSON)
	if err != nil {
		return uuid.UUID{}, status.Wrap(status.InvalidArg, err)
	}
	id := fl.ID()

	historyDurationNs, effectiveOptions, err := parseFlowOptions(optionsJSON)
	if err != nil {
		return uuid.UUID{}, status.Wrap(status.InvalidArg, err)
	}

	if err := inst.invalidateExisting(id); err != nil {
		return uuid.UUID{}, err
	}

	prepared, err := inst.store.Prepare(id, fl.RawJSON(), effectiveOptions)
	if err != nil {
		if errors.Is(err, flowstore.ErrPermissionDenied) {
			return uuid.UUID{}, status.New(status.PermissionDenied)
		}
		return uuid.UUID{}, status.Wrap(status.Internal, err)
	}

	if err := inst.materialize(prepared.DataFile(), fl, historyDurationNs); err != nil {
		prepared.Abort()
		return uuid.UUID{}, status.Wrap(status.Internal, err)
	}

	if err := prepared.Publish(); err != nil {
		return uuid.UUID{}, status.Wrap(status.Internal, err)
	}

	inst.log.Info("flow created", "id", id, "format", fl.Format.String())
	return id, nil
}

func (inst *Instance) invalidateExisting(id uuid.UUID) error {
	f, err := inst.store.OpenDataFile(id)
	if errors.Is(err, flowstore.ErrFlowNotFound) {
		return nil
	}
	if err != nil {
		return status.Wrap(status.Internal, err)
	}
	defer f.Close()

	mapping, err := region.Open(f)
	if err != nil {
		return status.Wrap(status.Internal, err)
	}
	defer mapping.Close()

	region.CommonOf(mapping.Bytes).SetInvalid()
	return nil
}

// materialize sizes and stamps the shared region for a freshly prepared
// flow's (still empty) data file.
func (inst *Instance) materialize(f *os.File, fl flow.Flow, historyDurationNs uint64) error {
	var idBytes [16]byte
	id := fl.ID()
	copy(idBytes[:], id[:])

	switch {
	case fl.Format.IsDiscrete():
		sizing, err := discreteSizingFor(fl)
		if err != nil {
			return err
		}
		rate := fl.GrainRate()
		count := timing.CountInDuration(rate, historyDurationNs)
		if count < minDiscreteSlots {
			count = minDiscreteSlots
		}
		grainCount := uint32(count)

		size := region.DiscreteHeaderSize + region.DiscretePayloadSize(sizing.grainSize, grainCount)
		mapping, err := region.Create(f, size)
		if err != nil {
			return err
		}
		defer mapping.Close()

		dr := region.InitDiscrete(mapping.Bytes, rate.Num, rate.Den, sizing.sliceSizes, grainCount, sizing.grainSize, sizing.totalSlices)
		dr.Common.Init(uint32(fl.Format), idBytes, mapping.Inode, defaultCommitBatchHint, defaultSyncBatchHint)
		return nil

	case fl.Format.IsContinuous():
		a := *fl.Audio
		count := timing.CountInDuration(a.SampleRate, historyDurationNs)
		bufferLength := region.NextPowerOfTwo(uint32(count))
		wordSize := a.SampleWordSize()

		size := region.ContinuousHeaderSize + region.ContinuousPayloadSize(wordSize, bufferLength, a.ChannelCount)
		mapping, err := region.Create(f, size)
		if err != nil {
			return err
		}
		defer mapping.Close()

		cr := region.InitContinuous(mapping.Bytes, a.SampleRate.Num, a.SampleRate.Den, a.ChannelCount, bufferLength, wordSize)
		cr.Common.Init(uint32(fl.Format), idBytes, mapping.Inode, defaultCommitBatchHint, defaultSyncBatchHint)
		return nil

	default:
		return fmt.Errorf("mxl: unsupported flow format %s", fl.Format)
	}
}

type discreteSizing struct {
	sliceSizes  []uint32
	grainSize   uint32
	totalSlices uint32
}

func discreteSizingFor(fl flow.Flow) (discreteSizing, error) {
	switch fl.Format {
	case flow.FormatVideo:
		v := *fl.Video
		sliceSizes, err := v.SliceLengths()
		if err != nil {
			return discreteSizing{}, err
		}
		totalSlices, err := v.TotalSlices()
		if err != nil {
			return discreteSizing{}, err
		}
		payload, err := v.PayloadSize()
		if err != nil {
			return discreteSizing{}, err
		}
		return discreteSizing{sliceSizes: sliceSizes, grainSize: uint32(payload), totalSlices: totalSlices}, nil
	case flow.FormatData:
		d := *fl.Data
		return discreteSizing{
			sliceSizes:  []uint32{d.SliceLength()},
			grainSize:   uint32(d.PayloadSize()),
			totalSlices: d.TotalSlices(),
		}, nil
	default:
		return discreteSizing{}, fmt.Errorf("format %s is not discrete", fl.Format)
	}
}

// DestroyFlow marks the flow's region FLOW_INVALID, then unlinks its
// directory. Returns FlowNotFound on a second call against the same id.
func (inst *Instance) DestroyFlow(id uuid.UUID) error {
	if err := inst.invalidateExisting(id); err != nil {
		return err
	}
	if err := inst.store.Destroy(id); err != nil {
		if errors.Is(err, flowstore.ErrFlowNotFound) {
			return status.New(status.FlowNotFound)
		}
		return status.Wrap(status.Internal, err)
	}
	return nil
}

// GetFlowDef returns the exact descriptor JSON bytes a flow was created
// with. Go slices make the original API's two-call, caller-sized-buffer
// pattern unnecessary; this returns the bytes directly.
func (inst *Instance) GetFlowDef(id uuid.UUID) ([]byte, error) {
	data, err := inst.store.ReadDescriptor(id)
	if errors.Is(err, flowstore.ErrFlowNotFound) {
		return nil, status.New(status.FlowNotFound)
	}
	if err != nil {
		return nil, status.Wrap(status.Internal, err)
	}
	return data, nil
}

// IsFlowActive reports whether a flow currently has a live writer: either
// its writer.lock is held, or its lastWriteTime is within the instance's
// heartbeat threshold.
func (inst *Instance) IsFlowActive(id uuid.UUID) (bool, error) {
	locked, err := flowstore.IsLocked(flowstore.LockPath(inst.store.Domain(), id))
	if err != nil {
		return false, status.Wrap(status.Internal, err)
	}
	if locked {
		return true, nil
	}

	f, err := inst.store.OpenDataFile(id)
	if errors.Is(err, flowstore.ErrFlowNotFound) {
		return false, status.New(status.FlowNotFound)
	}
	if err != nil {
		return false, status.Wrap(status.Internal, err)
	}
	defer f.Close()

	mapping, err := region.Open(f)
	if err != nil {
		return false, status.Wrap(status.Internal, err)
	}
	defer mapping.Close()

	lastWrite := region.CommonOf(mapping.Bytes).LastWriteTime()
	if lastWrite == 0 {
		return false, nil
	}
	return timing.Now()-lastWrite < inst.heartbeatThresholdNs, nil
}

// GarbageCollectFlows removes flow directories whose writer is not active
// and whose last heartbeat is older than maxAge, returning the ids removed.
func (inst *Instance) GarbageCollectFlows(maxAge time.Duration) ([]uuid.UUID, error) {
	ids, err := inst.store.List()
	if err != nil {
		return nil, status.Wrap(status.Internal, err)
	}

	heartbeats := make([]flowstore.FlowHeartbeat, len(ids))
	for i, id := range ids {
		heartbeats[i] = inst.flowHeartbeat(id)
	}

	removed, err := inst.store.GarbageCollectFlows(heartbeats, maxAge, time.Now())
	if err != nil {
		return removed, status.Wrap(status.Internal, err)
	}
	return removed, nil
}

func (inst *Instance) flowHeartbeat(id uuid.UUID) flowstore.FlowHeartbeat {
	hb := flowstore.FlowHeartbeat{ID: id}
	if locked, _ := flowstore.IsLocked(flowstore.LockPath(inst.store.Domain(), id)); locked {
		hb.WriterActive = true
	}
	if f, err := inst.store.OpenDataFile(id); err == nil {
		if mapping, err := region.Open(f); err == nil {
			ns := region.CommonOf(mapping.Bytes).LastWriteTime()
			hb.LastWriteTime = time.Unix(0, int64(ns))
			mapping.Close()
		}
		f.Close()
	}
	return hb
}

// FlowReader reads grains or sample ranges from a flow's mapped region,
// racing the flow's writer.
type FlowReader struct {
	id       uuid.UUID
	dataPath string
	file     *os.File
	mapping  *region.Mapping
	format   flow.Format

	discRegion *region.DiscreteRegion
	discReader *internalreader.DiscreteReader

	contRegion *region.ContinuousRegion
	contReader *internalreader.ContinuousReader
}

// CreateFlowReader opens id's data region read-write and wraps it for
// reading. Mapping read-write (rather than read-only) keeps lastReadTime
// stamping possible without a second, write-capable mapping.
func (inst *Instance) CreateFlowReader(id uuid.UUID) (*FlowReader, error) {
	dataPath := flowstore.DataPath(inst.store.Domain(), id)
	f, err := inst.store.OpenDataFile(id)
	if errors.Is(err, flowstore.ErrFlowNotFound) {
		return nil, status.New(status.FlowNotFound)
	}
	if err != nil {
		return nil, status.Wrap(status.Internal, err)
	}

	mapping, err := region.Open(f)
	if err != nil {
		f.Close()
		return nil, status.Wrap(status.Internal, err)
	}

	common := region.CommonOf(mapping.Bytes)
	if err := common.Validate(); err != nil {
		mapping.Close()
		f.Close()
		return nil, status.Wrap(status.Internal, err)
	}

	fr := &FlowReader{id: id, dataPath: dataPath, file: f, mapping: mapping, format: flow.Format(common.Format())}
	validFunc := func() bool {
		if region.CommonOf(mapping.Bytes).IsInvalid() {
			return false
		}
		ino, err := region.StatInode(dataPath)
		return err == nil && ino == mapping.Inode
	}

	switch {
	case fr.format.IsDiscrete():
		fr.discRegion = region.OpenDiscrete(mapping.Bytes)
		fr.discReader = internalreader.NewDiscreteReader(fr.discRegion, validFunc)
	case fr.format.IsContinuous():
		fr.contRegion = region.OpenContinuous(mapping.Bytes)
		fr.contReader = internalreader.NewContinuousReader(fr.contRegion, validFunc)
	default:
		mapping.Close()
		f.Close()
		return nil, status.Wrap(status.Internal, fmt.Errorf("mxl: unsupported flow format %s", fr.format))
	}
	return fr, nil
}

// Close releases the reader's mapping and file handle.
func (fr *FlowReader) Close() error {
	err := fr.mapping.Close()
	if cerr := fr.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// GetInfo returns the flow's current header state.
func (fr *FlowReader) GetInfo() FlowInfo {
	common := region.CommonOf(fr.mapping.Bytes)
	info := FlowInfo{
		ID:              fr.id,
		Format:          fr.format,
		Flags:           common.Flags(),
		HeadIndex:       common.HeadIndex(),
		LastWriteTime:   common.LastWriteTime(),
		LastReadTime:    common.LastReadTime(),
		CommitBatchHint: common.CommitBatchHint(),
		SyncBatchHint:   common.SyncBatchHint(),
	}
	switch {
	case fr.discRegion != nil:
		info.Rate = rational.New(fr.discRegion.GrainRateNum(), fr.discRegion.GrainRateDen())
		info.GrainCount = fr.discRegion.GrainCount()
	case fr.contRegion != nil:
		info.Rate = rational.New(fr.contRegion.SampleRateNum(), fr.contRegion.SampleRateDen())
		info.ChannelCount = fr.contRegion.ChannelCount()
		info.BufferLength = fr.contRegion.BufferLength()
	}
	return info
}

// GetGrain blocks up to timeoutNs waiting for index to become available,
// returning its GrainInfo and payload. Pass timeoutNs == 0 for a
// non-blocking check. Only valid for discrete (video, data) flows.
func (fr *FlowReader) GetGrain(index, timeoutNs uint64) (GrainInfo, []byte, error) {
	if fr.discReader == nil {
		return GrainInfo{}, nil, status.New(status.InvalidArg)
	}
	info, payload, serr := fr.discReader.GetGrain(index, timeoutNs)
	if serr != nil {
		return GrainInfo{}, nil, serr
	}
	return snapshotGrain(info), payload, nil
}

// GetSamples returns the count samples [startIndex, startIndex+count-1]
// across every channel. Only valid for continuous (audio) flows.
func (fr *FlowReader) GetSamples(startIndex uint64, count uint32) (WrappedMultiBufferSlice, error) {
	if fr.contReader == nil {
		return nil, status.New(status.InvalidArg)
	}
	slices, serr := fr.contReader.GetSamples(startIndex, count)
	if serr != nil {
		return nil, serr
	}
	return wrapSlices(slices), nil
}

// FlowWriter mutates a flow's mapped region. MXL allows at most one writer
// per flow at a time, enforced by an advisory file lock.
type FlowWriter struct {
	id      uuid.UUID
	file    *os.File
	mapping *region.Mapping
	lock    *flowstore.WriterLock
	format  flow.Format

	discWriter *internalwriter.DiscreteWriter
	contWriter *internalwriter.ContinuousWriter
}

// CreateFlowWriter takes the flow's exclusive writer lock and opens its
// region for mutation. Returns AlreadyExists if another writer already
// holds the lock.
func (inst *Instance) CreateFlowWriter(id uuid.UUID) (*FlowWriter, error) {
	lockPath := flowstore.LockPath(inst.store.Domain(), id)
	lock, err := flowstore.AcquireWriterLock(lockPath)
	if err != nil {
		if errors.Is(err, flowstore.ErrWriterActive) {
			return nil, status.New(status.AlreadyExists)
		}
		return nil, status.Wrap(status.Internal, err)
	}

	f, err := inst.store.OpenDataFile(id)
	if err != nil {
		lock.Release()
		if errors.Is(err, flowstore.ErrFlowNotFound) {
			return nil, status.New(status.FlowNotFound)
		}
		return nil, status.Wrap(status.Internal, err)
	}

	mapping, err := region.Open(f)
	if err != nil {
		f.Close()
		lock.Release()
		return nil, status.Wrap(status.Internal, err)
	}

	common := region.CommonOf(mapping.Bytes)
	if err := common.Validate(); err != nil {
		mapping.Close()
		f.Close()
		lock.Release()
		return nil, status.Wrap(status.Internal, err)
	}

	fw := &FlowWriter{id: id, file: f, mapping: mapping, lock: lock, format: flow.Format(common.Format())}
	switch {
	case fw.format.IsDiscrete():
		fw.discWriter = internalwriter.NewDiscreteWriter(region.OpenDiscrete(mapping.Bytes))
	case fw.format.IsContinuous():
		fw.contWriter = internalwriter.NewContinuousWriter(region.OpenContinuous(mapping.Bytes))
	default:
		mapping.Close()
		f.Close()
		lock.Release()
		return nil, status.Wrap(status.Internal, fmt.Errorf("mxl: unsupported flow format %s", fw.format))
	}
	return fw, nil
}

// Close releases the writer lock and the region mapping.
func (fw *FlowWriter) Close() error {
	err := fw.mapping.Close()
	if cerr := fw.file.Close(); err == nil {
		err = cerr
	}
	if cerr := fw.lock.Release(); err == nil {
		err = cerr
	}
	return err
}

// OpenGrain locates the slot for index and returns a writable view of its
// payload. Nothing is published until CommitGrain. Only valid for
// discrete (video, data) flows.
func (fw *FlowWriter) OpenGrain(index uint64) (GrainInfo, []byte, error) {
	if fw.discWriter == nil {
		return GrainInfo{}, nil, status.New(status.InvalidArg)
	}
	info, payload, err := fw.discWriter.OpenGrain(index)
	if err != nil {
		return GrainInfo{}, nil, status.Wrap(status.InvalidArg, err)
	}
	return snapshotGrain(info), payload, nil
}

// CommitGrain publishes validSlices slices of the currently open grain.
// validSlices must be a multiple of the flow's commit batch hint except
// for the final commit, where it must equal the grain's total slices.
func (fw *FlowWriter) CommitGrain(index uint64, validSlices, flags uint32) error {
	if fw.discWriter == nil {
		return status.New(status.InvalidArg)
	}
	serr, err := fw.discWriter.Commit(index, validSlices, flags)
	if serr != nil {
		return serr
	}
	if err != nil {
		return status.Wrap(status.InvalidArg, err)
	}
	return nil
}

// CancelGrain discards the currently open grain without publishing it.
func (fw *FlowWriter) CancelGrain() {
	if fw.discWriter != nil {
		fw.discWriter.Cancel()
	}
}

// OpenSamples opens [startIndex, startIndex+count-1] across every channel
// for mutation. Only valid for continuous (audio) flows.
func (fw *FlowWriter) OpenSamples(startIndex uint64, count uint32) (WrappedMultiBufferSlice, error) {
	if fw.contWriter == nil {
		return nil, status.New(status.InvalidArg)
	}
	slices, err := fw.contWriter.OpenSamples(startIndex, count)
	if err != nil {
		return nil, status.Wrap(status.InvalidArg, err)
	}
	return wrapSlices(slices), nil
}

// CommitSamples publishes the currently open sample range.
func (fw *FlowWriter) CommitSamples() error {
	if fw.contWriter == nil {
		return status.New(status.InvalidArg)
	}
	if err := fw.contWriter.Commit(); err != nil {
		return status.Wrap(status.InvalidArg, err)
	}
	return nil
}

// CancelSamples discards the currently open sample range without
// publishing it.
func (fw *FlowWriter) CancelSamples() {
	if fw.contWriter != nil {
		fw.contWriter.Cancel()
	}
}
