package pagination

import "context"

// SliceSource is an in-memory Source over an already ordered slice
type SliceSource[T any] []T

// Count returns slice length
func (s SliceSource[T]) Count(_ context.Context) (int, error) {
	return len(s), nil
}

// Slice returns at most limit items starting at offset
func (s SliceSource[T]) Slice(_ context.Context, offset, limit int) ([]T, error) {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(s) || limit <= 0 {
		return []T{}, nil
	}
	end := offset + limit
	if end > len(s) {
		end = len(s)
	}
	out := make([]T, end-offset)
	copy(out, s[offset:end])
	return out, nil
}

// FuncSource adapts a pair of query functions to Source, e.g. a COUNT query and a LIMIT/OFFSET query
type FuncSource[T any] struct {
	CountFunc func(ctx context.Context) (int, error)
	SliceFunc func(ctx context.Context, offset, limit int) ([]T, error)
}

// Count calls CountFunc
func (s FuncSource[T]) Count(ctx context.Context) (int, error) {
	return s.CountFunc(ctx)
}

// Slice calls SliceFunc
func (s FuncSource[T]) Slice(ctx context.Context, offset, limit int) ([]T, error) {
	return s.SliceFunc(ctx, offset, limit)
}
