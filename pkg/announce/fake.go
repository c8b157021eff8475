package announce

import "sync"

// FakePublisher is a test double that records published announcements.
type FakePublisher struct {
	mu sync.Mutex

	// Published records (watcher, tool) in publish order.
	Published []Announcement

	// PublishError, if set, is returned by PublishTool.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// Announcement is one recorded publish.
type Announcement struct {
	Watcher string
	Tool    int
}

// NewFakePublisher creates an empty FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishTool records the announcement.
func (f *FakePublisher) PublishTool(watcher string, tool int) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.mu.Lock()
	f.Published = append(f.Published, Announcement{Watcher: watcher, Tool: tool})
	f.mu.Unlock()
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// All returns a copy of the recorded announcements.
func (f *FakePublisher) All() []Announcement {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Announcement, len(f.Published))
	copy(out, f.Published)
	return out
}
