package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tunegate/tunegate-server/pkg/data/mint"
	"github.com/tunegate/tunegate-server/pkg/database/query"
)

type store struct {
	mu      sync.Mutex
	records []*mint.Record
	last    uint64
}

type byId []*mint.Record

func (a byId) Len() int           { return len(a) }
func (a byId) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byId) Less(i, j int) bool { return a[i].Id < a[j].Id }

// New returns a new in memory mint.Store
func New() mint.Store {
	return &store{}
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = nil
	s.last = 0
	s.mu.Unlock()
}

func (s *store) find(address string) *mint.Record {
	for _, item := range s.records {
		if item.Mint == address {
			return item
		}
	}
	return nil
}

func (s *store) filter(cursor query.Cursor, limit uint64, direction query.Ordering) []*mint.Record {
	start := uint64(0)
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*mint.Record
	for _, item := range s.records {
		if item.Id > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.Id < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(byId(res)))
	} else {
		sort.Sort(byId(res))
	}

	if limit > 0 && len(res) > int(limit) {
		return res[:limit]
	}
	return res
}

func (s *store) Save(_ context.Context, data *mint.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.find(data.Mint); item != nil {
		return mint.ErrExists
	}

	s.last++
	data.Id = s.last
	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records = append(s.records, &cloned)
	return nil
}

func (s *store) Get(_ context.Context, address string) (*mint.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.find(address); item != nil {
		cloned := item.Clone()
		return &cloned, nil
	}
	return nil, mint.ErrNotFound
}

func (s *store) GetAll(_ context.Context, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*mint.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.filter(cursor, limit, direction)
	if len(items) == 0 {
		return nil, mint.ErrNotFound
	}

	res := make([]*mint.Record, len(items))
	for i, item := range items {
		cloned := item.Clone()
		res[i] = &cloned
	}
	return res, nil
}

func (s *store) Count(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return uint64(len(s.records)), nil
}
