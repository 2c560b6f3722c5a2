package domain

import (
	"fmt"
	"strings"
)

// Holder is anything that can own balances. The ledger only needs the
// identity of the holder, never its schema.
type Holder interface {
	HolderID() string
	HolderType() string
}

// HolderRef is the stored identity of a Holder.
type HolderRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

func (h HolderRef) HolderID() string   { return h.ID }
func (h HolderRef) HolderType() string { return h.Type }

// IsZero reports whether the reference is unset.
func (h HolderRef) IsZero() bool {
	return h.ID == "" && h.Type == ""
}

func (h HolderRef) String() string {
	return h.Type + ":" + h.ID
}

// RefOf converts any Holder into a HolderRef. A nil holder yields the zero ref.
func RefOf(h Holder) HolderRef {
	if h == nil {
		return HolderRef{}
	}
	if ref, ok := h.(HolderRef); ok {
		return ref
	}

	return HolderRef{ID: h.HolderID(), Type: h.HolderType()}
}

// ParseHolderRef parses the "type:id" form produced by HolderRef.String.
func ParseHolderRef(s string) (HolderRef, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return HolderRef{}, fmt.Errorf("%w: holder %q must be type:id", ErrInvalidIDFormat, s)
	}

	return HolderRef{ID: id, Type: typ}, nil
}

// Custodian is a generic account-like holder.
type Custodian struct {
	ID   string
	Kind string
}

func (c Custodian) HolderID() string { return c.ID }

func (c Custodian) HolderType() string {
	if c.Kind == "" {
		return "custodian"
	}
	return c.Kind
}
