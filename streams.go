package sqlmongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Stream is a lazy sequence. gen returns done=true once there's nothing
// left. close releases whatever the stream holds and may be nil.
type Stream[T any] struct {
	gen   func() (T, bool, error)
	close func() error
}

func (s *Stream[T]) Next() (T, bool, error) {
	return s.gen()
}

// Close releases the stream's resources. It can be called more than once.
func (s *Stream[T]) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Consume reads the rest of the stream and closes it.
func (s *Stream[T]) Consume() ([]T, error) {
	var items []T
	for {
		r, done, err := s.Next()
		if err != nil {
			s.Close()
			return nil, err
		}
		if done {
			break
		}
		items = append(items, r)
	}
	return items, s.Close()
}

func mapStream[T, U any](s *Stream[T], f func(T) (U, error)) *Stream[U] {
	var u U
	return &Stream[U]{
		func() (U, bool, error) {
			x, done, err := s.Next()
			if err != nil || done {
				return u, done, err
			}
			val, err := f(x)
			return val, false, err
		},
		s.Close,
	}
}

// cursorStream reads documents from a store cursor. The cursor is closed as
// soon as it's drained or fails, or when the stream is closed.
func cursorStream(ctx context.Context, collection string, cur Cursor) *Stream[bson.D] {
	closed := false
	release := func() error {
		if closed {
			return nil
		}
		closed = true
		if err := cur.Close(ctx); err != nil {
			return &StoreError{Op: "close", Collection: collection, Err: err}
		}
		return nil
	}
	return &Stream[bson.D]{
		func() (bson.D, bool, error) {
			if closed {
				return nil, true, nil
			}
			doc, done, err := cur.Next(ctx)
			if err != nil {
				release()
				return nil, false, &StoreError{Op: "next", Collection: collection, Err: err}
			}
			if done {
				return nil, true, release()
			}
			return doc, false, nil
		},
		release,
	}
}
