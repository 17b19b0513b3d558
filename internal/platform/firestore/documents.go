package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/status"
)

// Decoder hydrates a typed value from a snapshot.
type Decoder[T any] func(snap *firestore.DocumentSnapshot) (T, error)

// StructDecoder uses Firestore's native struct decoding.
func StructDecoder[T any]() Decoder[T] {
	return func(snap *firestore.DocumentSnapshot) (T, error) {
		var target T
		err := snap.DataTo(&target)
		return target, err
	}
}

// GetDocument reads ref and decodes it. A missing document yields an error
// satisfying IsNotFound.
func GetDocument[T any](ctx context.Context, ref *firestore.DocumentRef, decode Decoder[T]) (T, error) {
	var zero T
	snap, err := ref.Get(ctx)
	if err != nil {
		return zero, WrapError(ref.Parent.ID+".get", err)
	}
	return decode(snap)
}

// QueryDocuments runs query and decodes every result.
func QueryDocuments[T any](ctx context.Context, op string, query firestore.Query, decode Decoder[T]) ([]T, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if isIteratorDone(err) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError(op, err)
		}
		value, err := decode(snap)
		if err != nil {
			return nil, WrapError(op, err)
		}
		out = append(out, value)
	}
}

func isIteratorDone(err error) bool {
	return errors.Is(err, iterator.Done)
}

func statusError(err error) (*status.Status, bool) {
	return status.FromError(err)
}
