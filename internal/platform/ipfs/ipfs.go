// Package ipfs abstracts content-addressed pinning of signature documents.
// The portal stores only the returned content hash; the pinning provider
// (Pinata or any IPFS node) lives outside this repository.
package ipfs

import "context"

// Pinner pins content and returns its content hash.
type Pinner interface {
	PinFile(ctx context.Context, name string, data []byte) (hash string, err error)
	PinJSON(ctx context.Context, name string, v interface{}) (hash string, err error)
}

// NopPinner is used when no pinning provider is configured. It returns an
// empty hash so records are stored without a document reference.
type NopPinner struct{}

func (NopPinner) PinFile(ctx context.Context, name string, data []byte) (string, error) {
	return "", nil
}

func (NopPinner) PinJSON(ctx context.Context, name string, v interface{}) (string, error) {
	return "", nil
}
