package suggest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// CacheLimit caps how many previously used values are fetched per field.
	CacheLimit = 15
	// DisplayLimit caps how many filtered suggestions are offered at once.
	DisplayLimit = 8
	// BlurGrace is how long a dismissal is deferred after focus loss, so a
	// selection landing in that window still commits.
	BlurGrace = 150 * time.Millisecond
)

// Fetcher loads previously used values for a field.
type Fetcher interface {
	Suggestions(ctx context.Context, fieldName string, limit int) ([]string, error)
}

// Box drives autocomplete for a single input field. It holds a fetched
// cache of past values, filters them against the current input and tracks
// the keyboard highlight. A commit hands the chosen value to the onCommit
// callback and closes the list.
type Box struct {
	mu sync.Mutex

	fieldName string
	fetcher   Fetcher
	onCommit  func(value string)

	cache    []string
	filtered []string
	input    string
	open     bool
	active   int

	blurGen int
	after   func(d time.Duration, f func()) // replaceable in tests
}

// NewBox returns a suggestion box for the named field. onCommit receives
// the selected value and may be nil.
func NewBox(fieldName string, fetcher Fetcher, onCommit func(string)) *Box {
	return &Box{
		fieldName: fieldName,
		fetcher:   fetcher,
		onCommit:  onCommit,
		active:    -1,
		after: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
}

// Load fetches the suggestion cache. A fetch failure leaves the cache
// empty; the box keeps working without suggestions.
func (b *Box) Load(ctx context.Context) error {
	values, err := b.fetcher.Suggestions(ctx, b.fieldName, CacheLimit)
	if err != nil {
		return fmt.Errorf("load suggestions for %s: %w", b.fieldName, err)
	}
	if len(values) > CacheLimit {
		values = values[:CacheLimit]
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = values
	b.refilter()
	return nil
}

// SetInput records the current input value, refilters the cache and
// resets the highlight. The list opens whenever matches exist.
func (b *Box) SetInput(value string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.input = value
	b.refilter()
	b.active = -1
	b.open = len(b.filtered) > 0
}

// refilter recomputes the visible suggestions. Matching is a
// case-insensitive substring test, the current value itself is excluded,
// and at most DisplayLimit entries survive. Caller holds the lock.
func (b *Box) refilter() {
	b.filtered = b.filtered[:0]
	if b.input == "" {
		return
	}

	needle := strings.ToLower(b.input)
	for _, s := range b.cache {
		lower := strings.ToLower(s)
		if lower == needle || !strings.Contains(lower, needle) {
			continue
		}
		b.filtered = append(b.filtered, s)
		if len(b.filtered) == DisplayLimit {
			break
		}
	}
}

// Suggestions returns the currently visible entries.
func (b *Box) Suggestions() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.filtered))
	copy(out, b.filtered)
	return out
}

// Open reports whether the list is showing.
func (b *Box) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && len(b.filtered) > 0
}

// Active returns the highlighted index, or -1 when nothing is highlighted.
func (b *Box) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// ArrowDown moves the highlight down, wrapping from the last entry to
// the first. Ignored while the list is closed.
func (b *Box) ArrowDown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open || len(b.filtered) == 0 {
		return
	}
	if b.active < len(b.filtered)-1 {
		b.active++
	} else {
		b.active = 0
	}
}

// ArrowUp moves the highlight up, wrapping from the first entry to the
// last. Ignored while the list is closed.
func (b *Box) ArrowUp() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open || len(b.filtered) == 0 {
		return
	}
	if b.active > 0 {
		b.active--
	} else {
		b.active = len(b.filtered) - 1
	}
}

// Enter commits the highlighted suggestion. Without a highlight it does
// nothing and reports false, leaving the key to its default meaning.
func (b *Box) Enter() bool {
	b.mu.Lock()
	if !b.open || b.active < 0 || b.active >= len(b.filtered) {
		b.mu.Unlock()
		return false
	}
	value := b.filtered[b.active]
	b.commitLocked(value)
	b.mu.Unlock()

	if b.onCommit != nil {
		b.onCommit(value)
	}
	return true
}

// Select commits the suggestion at the given index, as a pointer click
// does. Out-of-range indexes are ignored.
func (b *Box) Select(index int) {
	b.mu.Lock()
	if index < 0 || index >= len(b.filtered) {
		b.mu.Unlock()
		return
	}
	value := b.filtered[index]
	b.commitLocked(value)
	b.mu.Unlock()

	if b.onCommit != nil {
		b.onCommit(value)
	}
}

// commitLocked applies a committed value. The input now equals the
// suggestion, so the refilter drops it and the list stays closed.
func (b *Box) commitLocked(value string) {
	b.input = value
	b.refilter()
	b.open = false
	b.active = -1
	b.blurGen++
}

// Escape closes the list and clears the highlight without touching the
// input value.
func (b *Box) Escape() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.active = -1
}

// Focus reopens the list when matches exist and cancels any deferred
// dismissal from an earlier blur.
func (b *Box) Focus() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blurGen++
	if len(b.filtered) > 0 {
		b.open = true
	}
}

// Blur schedules the list to close after the grace period. A commit or
// refocus inside the window bumps the generation counter, which voids
// the pending close.
func (b *Box) Blur() {
	b.mu.Lock()
	b.blurGen++
	gen := b.blurGen
	b.mu.Unlock()

	b.after(BlurGrace, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if gen != b.blurGen {
			return
		}
		b.open = false
		b.active = -1
	})
}

// Input returns the current input value.
func (b *Box) Input() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.input
}

// Reset drops the cache and all transient state. The next Load fetches
// fresh values, as when the bound input is remounted.
func (b *Box) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = nil
	b.filtered = nil
	b.input = ""
	b.open = false
	b.active = -1
	b.blurGen++
}
