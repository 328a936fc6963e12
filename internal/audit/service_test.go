package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	rows       []TimelineRow
	lastOffset int
	lastLimit  int
}

func (s *stubStore) Window(_ context.Context, _ TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	s.lastOffset = offset
	s.lastLimit = limit
	if offset >= len(s.rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.rows) {
		end = len(s.rows)
	}
	return s.rows[offset:end], nil
}

func makeRows(n int) []TimelineRow {
	rows := make([]TimelineRow, n)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := range rows {
		rows[i] = TimelineRow{At: base.Add(-time.Duration(i) * time.Hour), ActorID: uuid.New(), Action: "PII_READ", Entity: "beneficiary"}
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	store := &stubStore{rows: makeRows(25)}
	svc := NewService(store)

	res, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 20)
	assert.True(t, res.Paging.HasNext)
	assert.Equal(t, 2, res.Paging.NextPage)
	assert.Zero(t, res.Paging.PrevPage)
	assert.Equal(t, 21, store.lastLimit, "fetches one row beyond the page")

	res, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 5)
	assert.False(t, res.Paging.HasNext)
	assert.Equal(t, 1, res.Paging.PrevPage)
	assert.Equal(t, 20, store.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	store := &stubStore{rows: makeRows(60)}
	svc := NewService(store)

	res, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Paging.PageSize)
	assert.Len(t, res.Rows, 50)
}

func TestTimelineEmpty(t *testing.T) {
	svc := NewService(&stubStore{})
	res, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}
