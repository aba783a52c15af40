package nimbus

import (
	"context"
	"errors"

	"github.com/nimbus-io/nimbus-client/internal/constants"
)

// PaginationClient is the narrow interface the iterator needs from a resource
// client: one page-number list call.
type PaginationClient[T any] interface {
	ListWithPath(ctx context.Context, path string, params *QueryParams) (*ListResponse[T], error)
}

// PaginationOptions tunes FetchAllPages and StreamPages.
type PaginationOptions struct {
	// PageSize is the per_page value sent with each fetch. 0 uses the
	// server default.
	PageSize int
	// MaxPages bounds the number of pages fetched. 0 uses a safety default.
	MaxPages int
}

// DefaultPaginationOptions returns the default pagination options.
func DefaultPaginationOptions() *PaginationOptions {
	return &PaginationOptions{
		PageSize: constants.DefaultPageSize,
		MaxPages: constants.MaxPages,
	}
}

// PaginationIterator lazily drains a page-number paginated collection into a
// forward-only sequence of items. One underlying list call is issued per page
// boundary, only when the consumer asks for the next item. Iterators are not
// restartable and must not be shared between goroutines; independent
// enumerations over the same endpoint do not share state.
type PaginationIterator[T any] struct {
	ctx     context.Context
	client  PaginationClient[T]
	path    string
	params  *QueryParams
	logger  Logger
	buffer  []T
	page    int
	total   int
	started bool
	done    bool
	pending error
}

// NewPaginationIterator creates an iterator over the collection at path.
func NewPaginationIterator[T any](ctx context.Context, client PaginationClient[T], path string, params *QueryParams) *PaginationIterator[T] {
	if params == nil {
		params = NewQueryParams()
	}

	return &PaginationIterator[T]{
		ctx:    ctx,
		client: client,
		path:   path,
		params: params,
	}
}

// WithLogger attaches a logger used to report protocol inconsistencies.
func (it *PaginationIterator[T]) WithLogger(logger Logger) *PaginationIterator[T] {
	it.logger = logger

	return it
}

// HasNext reports whether another item is available. Before the first fetch
// it optimistically returns true; the first Next call resolves it. A pending
// fatal error also reads as "next available" so that Next can surface it.
func (it *PaginationIterator[T]) HasNext() bool {
	if len(it.buffer) > 0 || it.pending != nil {
		return true
	}

	if !it.started {
		return true
	}

	return !it.done && it.page < it.total
}

// Next returns the next item, fetching the next page when the current one is
// exhausted. It returns ErrNoMoreItems once the collection is drained, or the
// fatal error that halted enumeration.
func (it *PaginationIterator[T]) Next() (T, error) {
	var zero T

	for len(it.buffer) == 0 {
		if it.done || (it.started && it.page >= it.total) {
			if it.pending != nil {
				return zero, it.pending
			}

			return zero, ErrNoMoreItems
		}

		if err := it.fetchNextPage(); err != nil {
			return zero, err
		}
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]

	return item, nil
}

func (it *PaginationIterator[T]) fetchNextPage() error {
	params := *it.params
	params.Page = it.page + 1

	resp, err := it.client.ListWithPath(it.ctx, it.path, &params)
	if err != nil {
		it.done = true

		return err
	}

	it.started = true
	it.page++
	it.total = resp.Pagination.TotalPages
	it.buffer = resp.Resources

	// A page that claims more pages exist but carries no next link is a
	// protocol violation by the upstream. Yield this page's items, then halt
	// instead of looping.
	if it.page < it.total && resp.Pagination.Next == nil {
		it.done = true
		it.pending = ErrPaginationInconsistent

		if it.logger != nil {
			it.logger.Error("pagination inconsistency: more pages claimed without next link", map[string]interface{}{
				"path":        it.path,
				"page":        it.page,
				"total_pages": it.total,
			})
		}
	}

	return nil
}

// All drains the remaining items into a slice. On a fatal enumeration error
// it returns the items collected so far together with the error.
func (it *PaginationIterator[T]) All() ([]T, error) {
	var items []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				break
			}

			return items, err
		}

		items = append(items, item)
	}

	return items, nil
}

// ForEach applies fn to each remaining item, stopping on the first error.
func (it *PaginationIterator[T]) ForEach(fn func(T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// CursorFetchFunc fetches one page of a cursor-paginated collection. The
// first call receives an empty cursor; subsequent calls receive the token
// from the previous page.
type CursorFetchFunc[T any] func(ctx context.Context, cursor string) (*CursorPage[T], error)

// CursorIterator lazily drains a cursor-paginated collection. It advances
// while the returned continuation token is non-empty, feeding the token into
// the next fetch. Like PaginationIterator it is forward-only, issues one
// fetch per page boundary, and is safe to abandon at any point.
type CursorIterator[T any] struct {
	ctx     context.Context
	fetch   CursorFetchFunc[T]
	logger  Logger
	buffer  []T
	cursor  string
	started bool
	done    bool
	pending error
}

// NewCursorIterator creates an iterator over a cursor-paginated collection.
func NewCursorIterator[T any](ctx context.Context, fetch CursorFetchFunc[T]) *CursorIterator[T] {
	return &CursorIterator[T]{
		ctx:   ctx,
		fetch: fetch,
	}
}

// WithLogger attaches a logger used to report protocol inconsistencies.
func (it *CursorIterator[T]) WithLogger(logger Logger) *CursorIterator[T] {
	it.logger = logger

	return it
}

// HasNext reports whether another item is available. Before the first fetch
// it optimistically returns true. A pending fatal error also reads as "next
// available" so that Next can surface it.
func (it *CursorIterator[T]) HasNext() bool {
	if len(it.buffer) > 0 || it.pending != nil {
		return true
	}

	return !it.started || !it.done
}

// Next returns the next item, fetching the next page when the current one is
// exhausted. It returns ErrNoMoreItems once the collection is drained, or
// ErrPaginationInconsistent when the upstream claimed more data without
// supplying a continuation token.
func (it *CursorIterator[T]) Next() (T, error) {
	var zero T

	for len(it.buffer) == 0 {
		if it.done {
			if it.pending != nil {
				return zero, it.pending
			}

			return zero, ErrNoMoreItems
		}

		if err := it.fetchNextPage(); err != nil {
			return zero, err
		}
	}

	item := it.buffer[0]
	it.buffer = it.buffer[1:]

	return item, nil
}

func (it *CursorIterator[T]) fetchNextPage() error {
	page, err := it.fetch(it.ctx, it.cursor)
	if err != nil {
		it.done = true

		return err
	}

	it.started = true
	it.buffer = page.Items

	switch {
	case page.HasMore && page.Cursor == "":
		// Upstream protocol violation: more data claimed, no token to reach
		// it. Yield this page's items, then halt.
		it.done = true
		it.pending = ErrPaginationInconsistent

		if it.logger != nil {
			it.logger.Error("pagination inconsistency: has_more set without continuation token", map[string]interface{}{
				"cursor": it.cursor,
			})
		}
	case page.Cursor == "":
		it.done = true
	default:
		it.cursor = page.Cursor
	}

	return nil
}

// All drains the remaining items into a slice. On a fatal enumeration error
// it returns the items collected so far together with the error.
func (it *CursorIterator[T]) All() ([]T, error) {
	var items []T

	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				break
			}

			return items, err
		}

		items = append(items, item)
	}

	return items, nil
}

// ForEach applies fn to each remaining item, stopping on the first error.
func (it *CursorIterator[T]) ForEach(fn func(T) error) error {
	for it.HasNext() {
		item, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrNoMoreItems) {
				return nil
			}

			return err
		}

		if err := fn(item); err != nil {
			return err
		}
	}

	return nil
}

// FetchAllPages collects every item of a page-number paginated collection,
// bounded by options.MaxPages.
func FetchAllPages[T any](ctx context.Context, client PaginationClient[T], path string, params *QueryParams, options *PaginationOptions) ([]T, error) {
	if options == nil {
		options = DefaultPaginationOptions()
	}

	maxPages := options.MaxPages
	if maxPages <= 0 {
		maxPages = constants.MaxPages
	}

	if params == nil {
		params = NewQueryParams()
	}

	if options.PageSize > 0 {
		params.PerPage = options.PageSize
	}

	var items []T

	for page := 1; page <= maxPages; page++ {
		pageParams := *params
		pageParams.Page = page

		resp, err := client.ListWithPath(ctx, path, &pageParams)
		if err != nil {
			return items, err
		}

		items = append(items, resp.Resources...)

		if page >= resp.Pagination.TotalPages {
			break
		}
	}

	return items, nil
}

// PageResult carries one page of results (or a terminal error) on the channel
// returned by StreamPages.
type PageResult[T any] struct {
	Items []T
	Err   error
}

// StreamPages fetches pages sequentially and delivers them on a channel. The
// channel is closed after the last page, the first error, or context
// cancellation. Page fetches never overlap.
func StreamPages[T any](ctx context.Context, client PaginationClient[T], path string, params *QueryParams, options *PaginationOptions) <-chan PageResult[T] {
	if options == nil {
		options = DefaultPaginationOptions()
	}

	maxPages := options.MaxPages
	if maxPages <= 0 {
		maxPages = constants.MaxPages
	}

	base := NewQueryParams()
	if params != nil {
		base = params
	}

	if options.PageSize > 0 {
		base.PerPage = options.PageSize
	}

	results := make(chan PageResult[T])

	go func() {
		defer close(results)

		for page := 1; page <= maxPages; page++ {
			pageParams := *base
			pageParams.Page = page

			resp, err := client.ListWithPath(ctx, path, &pageParams)
			if err != nil {
				select {
				case results <- PageResult[T]{Err: err}:
				case <-ctx.Done():
				}

				return
			}

			select {
			case results <- PageResult[T]{Items: resp.Resources}:
			case <-ctx.Done():
				return
			}

			if page >= resp.Pagination.TotalPages {
				return
			}
		}
	}()

	return results
}
