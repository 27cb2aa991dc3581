package scanner

import (
	"fmt"
	"sync"
	"time"

	"github.com/anstrom/portsweep/internal/errors"
)

// maxScanDuration is how long a scan may hold a slot before it is reported
// as potentially hung.
const maxScanDuration = 30 * time.Minute

// ErrNoScanSlots is returned when every scan slot is taken.
var ErrNoScanSlots = errors.NewScanError(errors.CodeTooManyScans, "too many concurrent scans")

// ScanSlots limits how many scans run at once.
type ScanSlots struct {
	capacity    int
	semaphore   chan struct{}
	activeScans map[string]time.Time
	mutex       sync.RWMutex
	closed      bool
}

// NewScanSlots creates a limiter with the specified capacity.
func NewScanSlots(capacity int) *ScanSlots {
	if capacity <= 0 {
		capacity = 1
	}

	return &ScanSlots{
		capacity:    capacity,
		semaphore:   make(chan struct{}, capacity),
		activeScans: make(map[string]time.Time),
	}
}

// TryAcquire takes a slot for scanID without blocking.
func (s *ScanSlots) TryAcquire(scanID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return fmt.Errorf("scan slots are closed")
	}
	if _, exists := s.activeScans[scanID]; exists {
		return fmt.Errorf("scan %s already holds a slot", scanID)
	}

	select {
	case s.semaphore <- struct{}{}:
		s.activeScans[scanID] = time.Now()
		return nil
	default:
		return ErrNoScanSlots
	}
}

// Release frees the slot held by scanID. Releasing an unknown ID is a no-op.
func (s *ScanSlots) Release(scanID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.activeScans[scanID]; exists {
		delete(s.activeScans, scanID)

		select {
		case <-s.semaphore:
		default:
		}
	}
}

// Active returns the current number of running scans.
func (s *ScanSlots) Active() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.activeScans)
}

// Available returns the number of free slots.
func (s *ScanSlots) Available() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.capacity - len(s.activeScans)
}

// LongRunning returns the IDs of scans that have held a slot longer than
// maxScanDuration.
func (s *ScanSlots) LongRunning() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var ids []string
	now := time.Now()
	for id, startTime := range s.activeScans {
		if now.Sub(startTime) > maxScanDuration {
			ids = append(ids, id)
		}
	}
	return ids
}

// Close releases every slot and rejects further acquisitions.
func (s *ScanSlots) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.activeScans = make(map[string]time.Time)

	for {
		select {
		case <-s.semaphore:
		default:
			return
		}
	}
}
