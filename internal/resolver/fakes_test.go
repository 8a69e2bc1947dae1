package resolver_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"lbfeed/internal/releasestore"
	"lbfeed/internal/services"
)

type fakeStore struct {
	mu         sync.Mutex
	records    map[string]releasestore.Record
	lookupErr  map[string]error
	insertErr  map[string]error
	lookups    int
	insertions []string
}

func newFakeStore(records ...releasestore.Record) *fakeStore {
	s := &fakeStore{
		records:   make(map[string]releasestore.Record),
		lookupErr: make(map[string]error),
		insertErr: make(map[string]error),
	}
	for _, record := range records {
		s.records[record.ID] = record
	}
	return s
}

func (s *fakeStore) Lookup(_ context.Context, id string) (releasestore.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if err := s.lookupErr[id]; err != nil {
		return releasestore.Record{}, false, err
	}
	record, ok := s.records[id]
	return record.Clone(), ok, nil
}

func (s *fakeStore) Insert(_ context.Context, record releasestore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertErr[record.ID]; err != nil {
		return err
	}
	if _, exists := s.records[record.ID]; exists {
		return services.Wrap(services.ErrStoreIO, "fake", "insert", "duplicate "+record.ID, nil)
	}
	s.records[record.ID] = record.Clone()
	s.insertions = append(s.insertions, record.ID)
	return nil
}

func (s *fakeStore) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok
}

type fetchResult struct {
	hasFront bool
	links    []releasestore.Link
	err      error
}

type fakeFetcher struct {
	mu       sync.Mutex
	results  map[string]fetchResult
	calls    []string
	starts   []time.Time
	inFlight int
	overlap  bool
	latency  time.Duration
	// started, when set, receives the id of every call as it begins.
	started chan string
	// gate, when set, blocks each call until it is closed or receives.
	gate chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{results: make(map[string]fetchResult)}
}

func (f *fakeFetcher) set(id string, result fetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = result
}

func (f *fakeFetcher) FetchOne(ctx context.Context, id string) (bool, []releasestore.Link, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.starts = append(f.starts, time.Now())
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	result, ok := f.results[id]
	latency, started, gate := f.latency, f.started, f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- id
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, nil, services.Wrap(services.ErrCanceled, "fake", "fetch", id, ctx.Err())
		}
	}
	if latency > 0 {
		time.Sleep(latency)
	}
	if !ok {
		return false, nil, services.Wrap(services.ErrDecode, "fake", "fetch", "no scripted result for "+id, nil)
	}
	return result.hasFront, result.links, result.err
}

func (f *fakeFetcher) callLog() ([]string, []time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), append([]time.Time(nil), f.starts...), f.overlap
}

var errBoom = errors.New("boom")
