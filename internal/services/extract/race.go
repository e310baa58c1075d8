package extract

import "context"

// raceFirst runs every candidate concurrently and returns the first result
// that accept approves, cancelling the rest. Returns the zero value and
// false when no candidate produces an acceptable result before ctx is done.
func raceFirst[T any](ctx context.Context, candidates []func(context.Context) (T, error), accept func(T) bool) (T, bool) {
	var zero T
	if len(candidates) == 0 {
		return zero, false
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	results := make(chan outcome, len(candidates))
	for _, candidate := range candidates {
		go func(fn func(context.Context) (T, error)) {
			value, err := fn(raceCtx)
			results <- outcome{value: value, err: err}
		}(candidate)
	}

	for range candidates {
		select {
		case <-ctx.Done():
			return zero, false
		case result := <-results:
			if result.err == nil && accept(result.value) {
				return result.value, true
			}
		}
	}
	return zero, false
}
