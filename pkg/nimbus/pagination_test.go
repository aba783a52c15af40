package nimbus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbus-io/nimbus-client/pkg/nimbus"
)

// MockPaginationClient implements PaginationClient for testing
type MockPaginationClient struct {
	pages   map[int]*nimbus.ListResponse[TestResource]
	fetches int
	err     error
}

type TestResource struct {
	ID string
}

func (m *MockPaginationClient) ListWithPath(ctx context.Context, path string, params *nimbus.QueryParams) (*nimbus.ListResponse[TestResource], error) {
	m.fetches++

	if m.err != nil {
		return nil, m.err
	}

	page := 1
	if params != nil && params.Page > 0 {
		page = params.Page
	}

	response, ok := m.pages[page]
	if !ok {
		return &nimbus.ListResponse[TestResource]{}, nil
	}

	return response, nil
}

func twoPageClient() *MockPaginationClient {
	return &MockPaginationClient{
		pages: map[int]*nimbus.ListResponse[TestResource]{
			1: {
				Pagination: nimbus.Pagination{
					TotalResults: 3,
					TotalPages:   2,
					Page:         1,
					Next:         &nimbus.Link{Href: "/v1/things?page=2"},
				},
				Resources: []TestResource{{ID: "A"}, {ID: "B"}},
			},
			2: {
				Pagination: nimbus.Pagination{
					TotalResults: 3,
					TotalPages:   2,
					Page:         2,
				},
				Resources: []TestResource{{ID: "C"}},
			},
		},
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestPaginationIterator(t *testing.T) {
	t.Parallel()

	t.Run("yields items in page order", func(t *testing.T) {
		t.Parallel()

		client := twoPageClient()
		iter := nimbus.NewPaginationIterator[TestResource](context.Background(), client, "/v1/things", nil)

		var ids []string

		for iter.HasNext() {
			item, err := iter.Next()
			if errors.Is(err, nimbus.ErrNoMoreItems) {
				break
			}

			require.NoError(t, err)
			ids = append(ids, item.ID)
		}

		assert.Equal(t, []string{"A", "B", "C"}, ids)
		// One fetch per page boundary, nothing speculative.
		assert.Equal(t, 2, client.fetches)
	})

	t.Run("is lazy until the first Next", func(t *testing.T) {
		t.Parallel()

		client := twoPageClient()
		iter := nimbus.NewPaginationIterator[TestResource](context.Background(), client, "/v1/things", nil)

		assert.True(t, iter.HasNext())
		assert.Equal(t, 0, client.fetches)

		_, err := iter.Next()
		require.NoError(t, err)
		assert.Equal(t, 1, client.fetches)
	})

	t.Run("independent enumerations do not share state", func(t *testing.T) {
		t.Parallel()

		client := twoPageClient()

		first := nimbus.NewPaginationIterator[TestResource](context.Background(), client, "/v1/things", nil)
		second := nimbus.NewPaginationIterator[TestResource](context.Background(), client, "/v1/things", nil)

		itemA, err := first.Next()
		require.NoError(t, err)

		itemB, err := second.Next()
		require.NoError(t, err)

		assert.Equal(t, "A", itemA.ID)
		assert.Equal(t, "A", itemB.ID)
	})

	t.Run("drained iterator keeps returning ErrNoMoreItems", func(t *testing.T) {
		t.Parallel()

		iter := nimbus.NewPaginationIterator[TestResource](context.Background(), twoPageClient(), "/v1/things", nil)

		_, err := iter.All()
		require.NoError(t, err)

		_, err = iter.Next()
		require.ErrorIs(t, err, nimbus.ErrNoMoreItems)

		_, err = iter.Next()
		require.ErrorIs(t, err, nimbus.ErrNoMoreItems)
	})

	t.Run("missing next link with pages remaining is fatal", func(t *testing.T) {
		t.Parallel()

		client := &MockPaginationClient{
			pages: map[int]*nimbus.ListResponse[TestResource]{
				1: {
					Pagination: nimbus.Pagination{
						TotalResults: 4,
						TotalPages:   2,
						Page:         1,
						// Next link absent despite a second page.
					},
					Resources: []TestResource{{ID: "A"}, {ID: "B"}},
				},
			},
		}

		iter := nimbus.NewPaginationIterator[TestResource](context.Background(), client, "/v1/things", nil)

		items, err := iter.All()
		require.ErrorIs(t, err, nimbus.ErrPaginationInconsistent)
		// The inconsistent page's own items are still yielded.
		assert.Len(t, items, 2)
		assert.Equal(t, 1, client.fetches)
	})

	t.Run("fetch errors propagate", func(t *testing.T) {
		t.Parallel()

		client := &MockPaginationClient{err: errors.New("boom")}
		iter := nimbus.NewPaginationIterator[TestResource](context.Background(), client, "/v1/things", nil)

		_, err := iter.Next()
		require.Error(t, err)
	})

	t.Run("ForEach visits every item", func(t *testing.T) {
		t.Parallel()

		iter := nimbus.NewPaginationIterator[TestResource](context.Background(), twoPageClient(), "/v1/things", nil)

		var ids []string

		err := iter.ForEach(func(item TestResource) error {
			ids = append(ids, item.ID)

			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B", "C"}, ids)
	})
}

func cursorPages(pages map[string]*nimbus.CursorPage[TestResource], fetches *int) nimbus.CursorFetchFunc[TestResource] {
	return func(ctx context.Context, cursor string) (*nimbus.CursorPage[TestResource], error) {
		*fetches++

		page, ok := pages[cursor]
		if !ok {
			return &nimbus.CursorPage[TestResource]{}, nil
		}

		return page, nil
	}
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestCursorIterator(t *testing.T) {
	t.Parallel()

	t.Run("follows continuation tokens in order", func(t *testing.T) {
		t.Parallel()

		fetches := 0
		fetch := cursorPages(map[string]*nimbus.CursorPage[TestResource]{
			"": {
				Items:   []TestResource{{ID: "A"}, {ID: "B"}},
				Cursor:  "tok-1",
				HasMore: true,
			},
			"tok-1": {
				Items: []TestResource{{ID: "C"}},
			},
		}, &fetches)

		iter := nimbus.NewCursorIterator(context.Background(), fetch)

		items, err := iter.All()
		require.NoError(t, err)
		assert.Equal(t, []TestResource{{ID: "A"}, {ID: "B"}, {ID: "C"}}, items)
		assert.Equal(t, 2, fetches)
	})

	t.Run("is lazy until the first Next", func(t *testing.T) {
		t.Parallel()

		fetches := 0
		fetch := cursorPages(map[string]*nimbus.CursorPage[TestResource]{
			"": {Items: []TestResource{{ID: "A"}}},
		}, &fetches)

		iter := nimbus.NewCursorIterator(context.Background(), fetch)

		assert.True(t, iter.HasNext())
		assert.Equal(t, 0, fetches)

		_, err := iter.Next()
		require.NoError(t, err)
		assert.Equal(t, 1, fetches)
	})

	t.Run("hasMore without token yields page then halts", func(t *testing.T) {
		t.Parallel()

		fetches := 0
		fetch := cursorPages(map[string]*nimbus.CursorPage[TestResource]{
			"": {
				Items:   []TestResource{{ID: "A"}, {ID: "B"}},
				HasMore: true,
			},
		}, &fetches)

		iter := nimbus.NewCursorIterator(context.Background(), fetch)

		items, err := iter.All()
		require.ErrorIs(t, err, nimbus.ErrPaginationInconsistent)
		assert.Equal(t, []TestResource{{ID: "A"}, {ID: "B"}}, items)
		assert.Equal(t, 1, fetches)

		// The failure is sticky.
		_, err = iter.Next()
		require.ErrorIs(t, err, nimbus.ErrPaginationInconsistent)
	})

	t.Run("empty first page terminates cleanly", func(t *testing.T) {
		t.Parallel()

		fetches := 0
		fetch := cursorPages(map[string]*nimbus.CursorPage[TestResource]{}, &fetches)

		iter := nimbus.NewCursorIterator(context.Background(), fetch)

		items, err := iter.All()
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.Equal(t, 1, fetches)
	})

	t.Run("fetch errors propagate", func(t *testing.T) {
		t.Parallel()

		iter := nimbus.NewCursorIterator(context.Background(), func(ctx context.Context, cursor string) (*nimbus.CursorPage[TestResource], error) {
			return nil, errors.New("boom")
		})

		_, err := iter.Next()
		require.Error(t, err)
	})
}

func TestFetchAllPages(t *testing.T) {
	t.Parallel()

	client := twoPageClient()

	items, err := nimbus.FetchAllPages[TestResource](context.Background(), client, "/v1/things", nil, nil)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 2, client.fetches)
}

func TestFetchAllPages_MaxPagesBound(t *testing.T) {
	t.Parallel()

	client := twoPageClient()

	items, err := nimbus.FetchAllPages[TestResource](context.Background(), client, "/v1/things", nil, &nimbus.PaginationOptions{MaxPages: 1})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 1, client.fetches)
}

func TestStreamPages(t *testing.T) {
	t.Parallel()

	client := twoPageClient()

	var pages [][]TestResource

	for result := range nimbus.StreamPages[TestResource](context.Background(), client, "/v1/things", nil, nil) {
		require.NoError(t, result.Err)
		pages = append(pages, result.Items)
	}

	require.Len(t, pages, 2)
	assert.Equal(t, []TestResource{{ID: "A"}, {ID: "B"}}, pages[0])
	assert.Equal(t, []TestResource{{ID: "C"}}, pages[1])
}

func TestStreamPages_ErrorTerminates(t *testing.T) {
	t.Parallel()

	client := &MockPaginationClient{err: errors.New("boom")}

	var results []nimbus.PageResult[TestResource]

	for result := range nimbus.StreamPages[TestResource](context.Background(), client, "/v1/things", nil, nil) {
		results = append(results, result)
	}

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}
