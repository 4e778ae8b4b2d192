// Package vfile implements the per-kind logical file framework:
// the FixMode open-state machine and the per-file
// in-memory page cache (attached-page map, LRU, free-list, and a
// bounded instance pool) that every index kind embeds.
package vfile

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/doquedb/sydcore/internal/buffer"
	"github.com/doquedb/sydcore/internal/version"
)

// ErrCancelled is raised by AttachPhysicalPage when the owning
// transaction's cancel flag is observed set (checked every 100th
// call).
var ErrCancelled = errors.New("vfile: operation cancelled")

// CancelFunc reports whether the calling transaction has been
// cancelled. internal/reorganize's transaction envelope supplies this.
type CancelFunc func() bool

// File is one logical file's open handle: the FixMode state machine,
// a buffer.Pool fixing pages through the versioned page layer, and
// the attached-page bookkeeping every index kind shares.
type File struct {
	mu sync.Mutex

	id  FileID
	sm  stateMachine
	ver *version.File
	pl  *buffer.Pool

	instances *instancePool
	free      *freeList

	attached map[buffer.PageID]*handle
	lruHead  *handle
	lruTail  *handle

	verifying      bool
	verifyProgress int

	attachCount uint64
	cancel      CancelFunc

	log *zap.Logger
}

// Open mounts a logical file's versioned storage and brings it into the
// state machine's open state per om.
func Open(id FileID, om OpenMode, cancel CancelFunc, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths := version.Paths{Master: id.MasterPath, Log: id.LogPath, SyncLog: id.SyncLogPath}
	ver, err := version.Mount(paths, id.PageSize, logger)
	if err != nil {
		return nil, fmt.Errorf("vfile: open %s: %w", id.Name, err)
	}
	fl, err := openFreeList(id.MasterPath + ".free")
	if err != nil {
		ver.Close()
		return nil, err
	}

	f := &File{
		id:        id,
		ver:       ver,
		instances: newInstancePool(id.InstancePoolCap),
		free:      fl,
		attached:  make(map[buffer.PageID]*handle),
		cancel:    cancel,
		log:       logger.With(zap.String("file", id.Name)),
	}
	f.pl, err = buffer.NewPool(ver, buffer.DefaultConfig())
	if err != nil {
		ver.Close()
		return nil, err
	}
	if err := f.sm.open(om); err != nil {
		ver.Close()
		return nil, err
	}
	return f, nil
}

// StartVerification transitions an unopened file into verification
// mode.
func (f *File) StartVerification(correct bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sm.startVerification(correct); err != nil {
		return err
	}
	f.verifying = true
	f.verifyProgress = 0
	return nil
}

// EndVerification leaves verification mode and flushes any repairs.
func (f *File) EndVerification() error {
	f.mu.Lock()
	f.verifying = false
	f.mu.Unlock()
	return f.FlushAllPages()
}

// AttachPhysicalPage fixes page id under mode, tracking it in this
// file's attached set. In verify mode it first asks the version layer
// to verify the page's consistency before use, aggregating progress.
func (f *File) AttachPhysicalPage(id buffer.PageID, mode buffer.FixMode) (*buffer.Memory, error) {
	f.mu.Lock()
	f.attachCount++
	checkCancel := f.attachCount%100 == 0
	verifying := f.verifying
	f.mu.Unlock()

	if checkCancel && f.cancel != nil && f.cancel() {
		return nil, ErrCancelled
	}

	if verifying {
		if _, err := f.ver.ReadPage(id); err != nil {
			return nil, fmt.Errorf("%w: %v", version.ErrVerifyAborted, err)
		}
		f.mu.Lock()
		f.verifyProgress++
		f.mu.Unlock()
	}

	mem, err := f.pl.Fix(id, mode, buffer.Middle)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	h := f.instances.get()
	h.id = id
	h.mem = mem
	f.attached[id] = h
	f.pushTailLocked(h)
	f.mu.Unlock()
	return mem, nil
}

// AllocatePage obtains a brand-new page from the underlying versioned
// file and tracks it in this file's attached set, the way
// AttachPhysicalPage does for an existing page. Every index kind that
// grows (a new leaf, a new overflow segment, a new header) goes
// through this entrypoint rather than touching the buffer pool
// directly.
func (f *File) AllocatePage() (*buffer.Memory, error) {
	mem, err := f.pl.AllocateFix(buffer.Middle)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	h := f.instances.get()
	h.id = mem.ID()
	h.mem = mem
	f.attached[h.id] = h
	f.pushTailLocked(h)
	f.mu.Unlock()
	return mem, nil
}

// DetachPage releases a previously attached page back to the cache,
// recording dirty as Unfix would, then considers the file's watermark
// for eviction.
func (f *File) DetachPage(id buffer.PageID, dirty bool, async bool) error {
	f.mu.Lock()
	h, ok := f.attached[id]
	f.mu.Unlock()
	if !ok {
		return fmt.Errorf("vfile: detach unattached page %d", id)
	}
	if err := h.mem.Unfix(dirty, async); err != nil {
		return fmt.Errorf("vfile: detach page %d: %w", id, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	h.detached = true
	f.evictIfOverWatermarkLocked()
	return nil
}

// FreePage marks a page free but not yet physically released; actual
// release is deferred to FlushAllPages.
func (f *File) FreePage(id buffer.PageID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.attached[id]; ok {
		f.unlinkLocked(h)
		delete(f.attached, id)
		if id != 0 {
			f.instances.put(h)
		}
	}
	f.free.add(id)
}

// FlushAllPages processes the free-list (releasing pages in the
// version layer), flushes every remaining attached page, recycles
// instances, and detaches everything in the underlying file.
func (f *File) FlushAllPages() error {
	f.mu.Lock()
	pending := f.free.drain()
	f.mu.Unlock()

	for _, id := range pending {
		f.pl.FreePage(id)
	}

	f.mu.Lock()
	for h := f.lruHead; h != nil; {
		next := h.lruNext
		if err := h.mem.Unfix(false, false); err != nil {
			f.mu.Unlock()
			return fmt.Errorf("vfile: flush page %d: %w", h.id, err)
		}
		delete(f.attached, h.id)
		if h.id != 0 {
			f.instances.put(h)
		}
		h = next
	}
	f.lruHead, f.lruTail = nil, nil
	f.mu.Unlock()

	if err := f.ver.FlushAllPages(); err != nil {
		return err
	}
	f.ver.DetachPageAll()
	f.pl.DetachAll()
	return f.free.persist()
}

// RecoverAllPages is flushAllPages's symmetric recovery counterpart:
// discardable pages are recovered (their in-flight modification rolled
// back) rather than flushed; others are detached in place to keep the
// file consistent.
func (f *File) RecoverAllPages() error {
	f.mu.Lock()
	for h := f.lruHead; h != nil; {
		next := h.lruNext
		// A discardable fix's modification is rolled back by simply not
		// flushing it dirty; Unfix(false, ...) leaves the master page
		// untouched.
		if err := h.mem.Unfix(false, true); err != nil {
			f.mu.Unlock()
			return fmt.Errorf("vfile: recover page %d: %w", h.id, err)
		}
		delete(f.attached, h.id)
		if h.id != 0 {
			f.instances.put(h)
		}
		h = next
	}
	f.lruHead, f.lruTail = nil, nil
	f.mu.Unlock()
	f.pl.DetachAll()
	return nil
}

// ChangeFixMode detaches and re-attaches a page with the file's current
// FixMode, transitioning between read-only and updatable views.
func (f *File) ChangeFixMode(id buffer.PageID, newMode buffer.FixMode) (*buffer.Memory, error) {
	if err := f.DetachPage(id, false, true); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if err := f.sm.changeFixMode(newMode); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	return f.AttachPhysicalPage(id, newMode)
}

// Close ends the file's open state and releases its underlying
// resources.
func (f *File) Close() error {
	if err := f.FlushAllPages(); err != nil {
		return err
	}
	f.mu.Lock()
	_ = f.sm.close()
	f.mu.Unlock()
	return f.ver.Close()
}

func (f *File) pushTailLocked(h *handle) {
	h.lruPrev = f.lruTail
	h.lruNext = nil
	if f.lruTail != nil {
		f.lruTail.lruNext = h
	}
	f.lruTail = h
	if f.lruHead == nil {
		f.lruHead = h
	}
}

func (f *File) unlinkLocked(h *handle) {
	if h.lruPrev != nil {
		h.lruPrev.lruNext = h.lruNext
	} else if f.lruHead == h {
		f.lruHead = h.lruNext
	}
	if h.lruNext != nil {
		h.lruNext.lruPrev = h.lruPrev
	} else if f.lruTail == h {
		f.lruTail = h.lruPrev
	}
	h.lruPrev, h.lruNext = nil, nil
}

// evictIfOverWatermarkLocked scans from the LRU head (least recently
// touched) evicting detached, non-dirty, unreferenced pages until the
// attached set is back under the configured watermark: only pages
// whose buffer fix count is zero and that are clean evict. A handle
// still short of its own
// DetachPage is a page some caller holds open and is never a
// candidate, regardless of LRU position; a detached handle whose page
// came back dirty (flush inhibited) is skipped rather than dropped,
// since dropping it here would leak its buffer.Pool fix.
func (f *File) evictIfOverWatermarkLocked() {
	if f.id.CacheWatermark <= 0 || len(f.attached) <= f.id.CacheWatermark {
		return
	}
	h := f.lruHead
	for h != nil && len(f.attached) > f.id.CacheWatermark {
		next := h.lruNext
		if !h.detached || !h.mem.Evictable() {
			h = next
			continue
		}
		if err := h.mem.Unfix(false, false); err != nil {
			f.log.Warn("evict: unfix failed, leaving page attached",
				zap.Uint32("page", uint32(h.id)), zap.Error(err))
			h = next
			continue
		}
		f.unlinkLocked(h)
		delete(f.attached, h.id)
		if h.id != 0 {
			f.instances.put(h)
		}
		h = next
	}
}
