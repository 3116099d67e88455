package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
)

// Slice, et al., taken from:
// https://betterprogramming.pub/writing-a-stream-api-in-go-afbc3c4350e2

func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for _, element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

// NDJSON decodes a stream of JSON values.
// A value that is well-formed JSON but does not decode into T is reported to onErr,
// if non-nil, and skipped. Malformed input or a read error ends the stream,
// and is reported to onErr too.
func NDJSON[T any](ctx context.Context, in io.Reader, onErr func(error)) <-chan T {
	out := make(chan T)
	report := func(err error) {
		if onErr != nil {
			onErr(err)
		}
	}
	go func() {
		defer close(out)
		dec := json.NewDecoder(in)
		for {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				if !errors.Is(err, io.EOF) {
					report(err)
				}
				return
			}
			var element T
			if err := json.Unmarshal(raw, &element); err != nil {
				report(err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- element:
			}
		}
	}()
	return out
}

func Filter[T any](ctx context.Context, predicate func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for element := range in {
			if predicate(element) {
				select {
				case <-ctx.Done():
					return
				case out <- element:
				}
			}
		}
	}()
	return out
}

func Transform[I any, O any](ctx context.Context, transformer func(I) O, in <-chan I) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		for element := range in {
			select {
			case <-ctx.Done():
				return
			case out <- transformer(element):
			}
		}
	}()
	return out
}

// Batch groups elements into slices of size n; the last batch may be short.
func Batch[T any](ctx context.Context, n int, in <-chan T) <-chan []T {
	if n < 1 {
		n = 1
	}
	out := make(chan []T)
	go func() {
		defer close(out)
		batch := make([]T, 0, n)
		for element := range in {
			batch = append(batch, element)
			if len(batch) < n {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- batch:
			}
			batch = make([]T, 0, n)
		}
		if len(batch) > 0 {
			select {
			case <-ctx.Done():
			case out <- batch:
			}
		}
	}()
	return out
}

// Collect drains in. On cancellation it keeps draining, so upstream goroutines
// can exit, but stops appending.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	out := make([]T, 0)
	for element := range in {
		select {
		case <-ctx.Done():
			continue
		default:
			out = append(out, element)
		}
	}
	return out
}
