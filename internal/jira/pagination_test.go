package jira

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePages serves items 0..total-1 in pages, recording every request.
type fakePages struct {
	total    int
	requests []int
	failAt   int // startAt that returns an error; -1 disables
	limit    int // server-side cap on maxResults; 0 disables
}

func (f *fakePages) fetch(_ context.Context, startAt, maxResults int) (Page[int], error) {
	f.requests = append(f.requests, startAt)
	if startAt == f.failAt {
		return Page[int]{}, errors.New("connection reset")
	}
	if f.limit > 0 && maxResults > f.limit {
		maxResults = f.limit
	}
	var items []int
	for i := startAt; i < startAt+maxResults && i < f.total; i++ {
		items = append(items, i)
	}
	return Page[int]{Total: f.total, Items: items}, nil
}

func TestListAllCompleteness(t *testing.T) {
	tests := []struct {
		name         string
		total        int
		pageSize     int
		wantRequests int
	}{
		{"empty", 0, 50, 1},
		{"less than a page", 7, 50, 1},
		{"exact multiple", 100, 50, 2},
		{"non multiple", 101, 50, 3},
		{"page size one", 3, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakePages{total: tt.total, failAt: -1}
			got, err := ListAll(context.Background(), tt.pageSize, f.fetch)
			require.NoError(t, err)

			require.Len(t, got, tt.total)
			seen := make(map[int]bool, len(got))
			for i, v := range got {
				assert.Equal(t, i, v, "server order must be preserved")
				assert.False(t, seen[v], "item %d listed twice", v)
				seen[v] = true
			}
			assert.Len(t, f.requests, tt.wantRequests)
		})
	}
}

func TestListAllAdvancesByPageSize(t *testing.T) {
	f := &fakePages{total: 120, failAt: -1}
	_, err := ListAll(context.Background(), 50, f.fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 50, 100}, f.requests)
}

func TestListAllFollowsServerPageCap(t *testing.T) {
	f := &fakePages{total: 250, failAt: -1, limit: 100}
	got, err := ListAll(context.Background(), 200, f.fetch)
	require.NoError(t, err)
	require.Len(t, got, 250)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, []int{0, 100, 200}, f.requests)
}

func TestListAllDefaultsPageSize(t *testing.T) {
	f := &fakePages{total: 60, failAt: -1}
	got, err := ListAll(context.Background(), 0, f.fetch)
	require.NoError(t, err)
	assert.Len(t, got, 60)
	assert.Equal(t, []int{0, DefaultPageSize}, f.requests)
}

func TestListAllPageErrorAbortsWithoutPartialResult(t *testing.T) {
	f := &fakePages{total: 150, failAt: 50}
	got, err := ListAll(context.Background(), 50, f.fetch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.Nil(t, got)
}

func TestListAllEmptyPageBeforeTotal(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, startAt, _ int) (Page[string], error) {
		calls++
		if startAt == 0 {
			return Page[string]{Total: 5, Items: []string{"a", "b"}}, nil
		}
		return Page[string]{Total: 5}, nil
	}
	_, err := ListAll(context.Background(), 2, fetch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
	assert.Equal(t, 2, calls)
}

func TestListAllKeepsSourceUnavailableWrapping(t *testing.T) {
	fetch := func(context.Context, int, int) (Page[string], error) {
		return Page[string]{}, fmt.Errorf("%w: JIRA API returned 401", ErrSourceUnavailable)
	}
	_, err := ListAll(context.Background(), 10, fetch)
	require.Error(t, err)
	assert.Equal(t, "source unavailable: JIRA API returned 401", err.Error())
}

func TestListAllStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakePages{total: 10, failAt: -1}
	_, err := ListAll(ctx, 5, f.fetch)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.requests)
}
