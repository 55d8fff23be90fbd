package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"remindbot/internal/storage"
	"remindbot/internal/transport"
)

type memBackend struct {
	mu      sync.Mutex
	doc     *storage.Document
	saves   int
	saveErr error
	loadErr error
}

func (b *memBackend) Load(ctx context.Context) (*storage.Document, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	if b.doc == nil {
		return nil, storage.ErrNoState
	}
	raw, err := storage.EncodeDocument(b.doc)
	if err != nil {
		return nil, err
	}
	return storage.DecodeDocument(raw)
}

func (b *memBackend) Save(ctx context.Context, doc *storage.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saves++
	if b.saveErr != nil {
		return b.saveErr
	}
	raw, err := storage.EncodeDocument(doc)
	if err != nil {
		return err
	}
	b.doc, err = storage.DecodeDocument(raw)
	return err
}

func (b *memBackend) Close() error { return nil }

func (b *memBackend) saveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

type delivery struct {
	dest string
	segs []transport.Segment
}

type fakeDeliverer struct {
	mu   sync.Mutex
	got  []delivery
	fail bool
}

func (d *fakeDeliverer) Deliver(ctx context.Context, dest string, segs []transport.Segment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, delivery{dest: dest, segs: segs})
	if d.fail {
		return errors.New("queue full")
	}
	return nil
}

func (d *fakeDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.got)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	fail map[string]bool
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if f.fail[url] {
		return "", errors.New("download failed")
	}
	return "/media/" + url[len(url)-5:], nil
}

func ids(tasks []TaskView) []int {
	out := make([]int, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func contents(tasks []TaskView) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Content)
	}
	return out
}

func day(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.Local)
}
