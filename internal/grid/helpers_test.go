package grid

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// fakeSource is an in-memory DataSource with single-row mutations only, so
// bulk operations go through the sequential fallback.
type fakeSource struct {
	mu         sync.Mutex
	rows       []Row
	fetchErr   error
	failDelete map[string]error
	failUpdate map[string]error
	fetches    []Params
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{failDelete: map[string]error{}, failUpdate: map[string]error{}}
	for i := 1; i <= n; i++ {
		s.rows = append(s.rows, Row{"id": fmt.Sprint(i), "name": fmt.Sprintf("row %d", i), "price": float64(i)})
	}
	return s
}

func (s *fakeSource) Fetch(_ context.Context, p Params) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches = append(s.fetches, p)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	start := p.Offset()
	if start > len(s.rows) {
		start = len(s.rows)
	}
	end := start + p.Pagination.PageSize
	if end > len(s.rows) {
		end = len(s.rows)
	}
	page := make([]Row, 0, end-start)
	for _, r := range s.rows[start:end] {
		page = append(page, r.Clone())
	}
	return NewResult(page, len(s.rows), p.Pagination.Page, p.Pagination.PageSize), nil
}

func (s *fakeSource) Update(_ context.Context, id string, changes Row) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failUpdate[id]; err != nil {
		return nil, err
	}
	for _, r := range s.rows {
		if r["id"] == id {
			for k, v := range changes {
				r[k] = v
			}
			return r.Clone(), nil
		}
	}
	return nil, ErrRowNotFound
}

func (s *fakeSource) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failDelete[id]; err != nil {
		return err
	}
	for i, r := range s.rows {
		if r["id"] == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return ErrRowNotFound
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetches)
}

func (s *fakeSource) lastFetch() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[len(s.fetches)-1]
}

func (s *fakeSource) setFetchErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErr = err
}

// fetchOnly implements nothing beyond Fetch.
type fetchOnly struct{}

func (fetchOnly) Fetch(context.Context, Params) (*Result, error) {
	return NewResult(nil, 0, 1, 10), nil
}

// gatedSource hands every fetch to the test, which decides when and with what
// it returns.
type gatedSource struct {
	calls chan gatedCall
}

type gatedCall struct {
	params Params
	reply  chan gatedReply
}

type gatedReply struct {
	res *Result
	err error
}

func newGatedSource() *gatedSource {
	return &gatedSource{calls: make(chan gatedCall, 16)}
}

// Fetch ignores cancellation so superseded responses still arrive late.
func (s *gatedSource) Fetch(_ context.Context, p Params) (*Result, error) {
	c := gatedCall{params: p, reply: make(chan gatedReply, 1)}
	s.calls <- c
	r := <-c.reply
	return r.res, r.err
}

func (c gatedCall) respond(tag string) {
	c.reply <- gatedReply{res: NewResult(
		[]Row{{"id": tag}},
		100,
		c.params.Pagination.Page,
		c.params.Pagination.PageSize,
	)}
}

var errBoom = errors.New("boom")

func testSchema() *Schema {
	s, err := NewSchema([]ColumnDefinition{
		{Key: "id", Type: FieldText},
		{Key: "name", Type: FieldText, Editable: true, Rules: []Rule{Required(), MaxLength(20)}},
		{Key: "price", Type: FieldCurrency, Editable: true, Rules: []Rule{Min(0)}},
		{Key: "status", Type: FieldSelect, Editable: true, Options: []Option{
			{Value: "active", Label: "Active"},
			{Value: "archived", Label: "Archived"},
		}},
	})
	if err != nil {
		panic(err)
	}
	return s
}
