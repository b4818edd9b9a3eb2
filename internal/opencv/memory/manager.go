package memory

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"demarcation-eraser/internal/logger"
	"demarcation-eraser/internal/opencv/safe"

	"gocv.io/x/gocv"
)

const (
	DefaultBudget          = 2 * 1024 * 1024 * 1024
	DefaultMonitorInterval = 30 * time.Second

	leakWarnThreshold = 50
)

var ErrBudgetExceeded = errors.New("memory budget exceeded")

// Manager accounts for every safe.Mat tracked through it and every Mat
// converted or thresholded from one. Batch runs share one Manager so the
// byte budget covers all images in flight.
type Manager struct {
	mu     sync.RWMutex
	logger logger.Logger
	budget int64
	stats  Stats
	live   map[uint64]*MatInfo
	cancel context.CancelFunc
	done   chan struct{}
}

// Stats is a snapshot of the Manager's counters.
type Stats struct {
	Allocations   int64
	Deallocations int64
	UsedBytes     int64
	Live          int
}

type MatInfo struct {
	ID      uint64
	Tag     string
	Size    int64
	Created time.Time
}

type Option func(*Manager)

func WithBudget(bytes int64) Option {
	return func(m *Manager) {
		m.budget = bytes
	}
}

func NewManager(log logger.Logger, opts ...Option) *Manager {
	return newManager(log, DefaultMonitorInterval, opts...)
}

func newManager(log logger.Logger, interval time.Duration, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		logger: logger.OrNop(log),
		budget: DefaultBudget,
		live:   make(map[uint64]*MatInfo),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.monitor(ctx, interval)
	return m
}

// Reserve checks the budget for a Mat of the given shape.
func (m *Manager) Reserve(rows, cols int, matType gocv.MatType) error {
	size := safe.SizeOf(rows, cols, matType)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if want := m.stats.UsedBytes + size; want > m.budget {
		return fmt.Errorf("%w: %d of %d bytes", ErrBudgetExceeded, want, m.budget)
	}
	return nil
}

// Track copies src into a tracked safe.Mat. Mats derived from the result
// report to m as well.
func (m *Manager) Track(src gocv.Mat, tag string) (*safe.Mat, error) {
	if err := m.Reserve(src.Rows(), src.Cols(), src.Type()); err != nil {
		runtime.GC()
		return nil, err
	}
	return safe.NewMatFromMatWithTracker(src, m, tag)
}

func (m *Manager) TrackAllocation(id uint64, size int64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Allocations++
	m.stats.UsedBytes += size
	m.live[id] = &MatInfo{ID: id, Tag: tag, Size: size, Created: time.Now()}
}

func (m *Manager) TrackDeallocation(id uint64, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Deallocations++
	if info, ok := m.live[id]; ok {
		m.stats.UsedBytes -= info.Size
		delete(m.live, id)
	}
}

// ReleaseMat closes mat; nil is ignored.
func (m *Manager) ReleaseMat(mat *safe.Mat, tag string) {
	if mat == nil {
		return
	}
	m.logger.Debug("MemoryManager", "releasing Mat", map[string]interface{}{
		"tag": tag,
		"id":  mat.ID(),
	})
	mat.Close()
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.stats
	s.Live = len(m.live)
	return s
}

func (m *Manager) monitor(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) check() {
	s := m.Stats()

	m.logger.Debug("MemoryManager", "memory statistics", map[string]interface{}{
		"allocations":   s.Allocations,
		"deallocations": s.Deallocations,
		"used_bytes":    s.UsedBytes,
		"live_mats":     s.Live,
	})

	if s.Live > leakWarnThreshold {
		now := time.Now()
		for _, info := range m.oldest(5) {
			m.logger.Warning("MemoryManager", "long-lived Mat", map[string]interface{}{
				"tag":  info.Tag,
				"size": info.Size,
				"age":  now.Sub(info.Created).String(),
			})
		}
	}

	if s.UsedBytes > m.budget*8/10 {
		runtime.GC()
	}
}

func (m *Manager) oldest(n int) []*MatInfo {
	m.mu.RLock()
	infos := make([]*MatInfo, 0, len(m.live))
	for _, info := range m.live {
		infos = append(infos, info)
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Created.Before(infos[j].Created)
	})
	if len(infos) > n {
		infos = infos[:n]
	}
	return infos
}

// Shutdown stops the monitor and forgets Mats that were never released.
// Their finalizers still free the native memory.
func (m *Manager) Shutdown() {
	m.cancel()
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, info := range m.live {
		m.logger.Warning("MemoryManager", "unreleased Mat at shutdown", map[string]interface{}{
			"tag":  info.Tag,
			"size": info.Size,
		})
	}

	m.logger.Debug("MemoryManager", "shutdown completed", map[string]interface{}{
		"unreleased": len(m.live),
	})

	m.live = make(map[uint64]*MatInfo)
	m.stats.UsedBytes = 0
}
