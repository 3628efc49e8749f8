package playlist

import (
	"context"
	"errors"
	"fmt"
)

// ErrDestinationNotEmpty is returned by Copy when dst already holds items
// and overwrite is false.
var ErrDestinationNotEmpty = errors.New("destination playlist is not empty")

// Copy writes the items stored in src to dst as the next version of dst's
// document and returns how many items were copied.
func Copy(ctx context.Context, src, dst Backend, overwrite bool) (int, error) {
	from, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}
	to, err := dst.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load destination: %w", err)
	}
	if len(to.Items) > 0 && !overwrite {
		return 0, fmt.Errorf("%w: %d items", ErrDestinationNotEmpty, len(to.Items))
	}

	next := from.Clone()
	next.Version = to.Version + 1
	if err := dst.Save(ctx, next); err != nil {
		return 0, fmt.Errorf("save destination: %w", err)
	}
	return len(next.Items), nil
}
