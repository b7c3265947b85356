// Package cache keeps dehydrated document listings close to the API so
// repeated library views skip the row store. The row store stays
// authoritative.
//
// Every owner has a generation that Invalidate advances. A listing is
// stored only under the generation observed before it was read from the
// row store, so a list read that raced a mutation is dropped instead of
// outliving it.
package cache

import (
	"context"

	"github.com/frandy73/Lumina/internal/domain"
)

// Lookup is the result of GetList. On a miss Docs is nil and Generation is
// the value to hand back to SetList after reading the row store.
type Lookup struct {
	Docs       []domain.Document
	Hit        bool
	Generation int64
}

// DocumentCache caches the dehydrated document list of an owner.
type DocumentCache interface {
	GetList(ctx context.Context, ownerID string) (Lookup, error)
	// SetList stores docs unless the owner's generation moved past gen.
	SetList(ctx context.Context, ownerID string, gen int64, docs []domain.Document) error
	// Invalidate drops the listing and advances the generation.
	Invalidate(ctx context.Context, ownerID string) error
}

// Noop never caches anything.
type Noop struct{}

func (Noop) GetList(context.Context, string) (Lookup, error)                 { return Lookup{}, nil }
func (Noop) SetList(context.Context, string, int64, []domain.Document) error { return nil }
func (Noop) Invalidate(context.Context, string) error                        { return nil }

// strip drops payloads so a cached listing can never carry file bytes.
func strip(docs []domain.Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		out[i] = d.Dehydrated()
	}
	return out
}
