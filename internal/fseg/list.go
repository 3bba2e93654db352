// Package fseg implements the generic embedded doubly linked list
// framework (spec.md §4.F) and the FSEG (file segment) domain view
// layered on page.INodePage entries (spec.md §4.E).
package fseg

import (
	"github.com/pkg/errors"

	"github.com/MailG/innodb-ruby/internal/page"
)

// ErrListOverrun is returned when forward iteration does not reach a
// nil link within the list's declared Length — a structural
// corruption (spec.md §7, §8).
var ErrListOverrun = errors.New("fseg: list walk exceeded its declared length")

// Decoder resolves a (page, offset) address to its typed entry and
// the entry's embedded prev/next link. It never re-reads from a file;
// it operates on an already-fetched page's buffer, handed to the
// caller-supplied fetch function.
type Decoder[T any] func(addr page.Addr) (entry T, link page.ListNode, err error)

// Each walks base forward, decoding at most base.Length entries. It
// enforces Length as an upper bound (spec.md §4.F): a list whose links
// do not reach nil within Length steps is reported as ErrListOverrun
// rather than looped forever.
func Each[T any](base page.ListBaseNode, decode Decoder[T]) ([]T, error) {
	out := make([]T, 0, base.Length)
	addr := base.First
	for i := uint32(0); i < base.Length; i++ {
		if addr.IsNil() {
			return out, errors.Errorf("fseg: list ended after %d of %d declared entries", len(out), base.Length)
		}
		entry, link, err := decode(addr)
		if err != nil {
			return out, errors.Wrap(err, "fseg: decoding list entry")
		}
		out = append(out, entry)
		addr = link.Next
	}
	if !addr.IsNil() {
		return out, ErrListOverrun
	}
	return out, nil
}

// EachReverse walks base backward from Last, for invariant
// verification (spec.md §8: reverse traversal yields the same set in
// reverse order).
func EachReverse[T any](base page.ListBaseNode, decode Decoder[T]) ([]T, error) {
	out := make([]T, 0, base.Length)
	addr := base.Last
	for i := uint32(0); i < base.Length; i++ {
		if addr.IsNil() {
			return out, errors.Errorf("fseg: reverse list ended after %d of %d declared entries", len(out), base.Length)
		}
		entry, link, err := decode(addr)
		if err != nil {
			return out, errors.Wrap(err, "fseg: decoding list entry (reverse)")
		}
		out = append(out, entry)
		addr = link.Prev
	}
	if !addr.IsNil() {
		return out, ErrListOverrun
	}
	return out, nil
}

// Includes reports whether target's (page, offset) address appears in
// base's forward walk. O(length), per spec.md §4.F.
func Includes[T any](base page.ListBaseNode, decode Decoder[T], target page.Addr) (bool, error) {
	addr := base.First
	for i := uint32(0); i < base.Length; i++ {
		if addr.IsNil() {
			return false, nil
		}
		if addr == target {
			return true, nil
		}
		_, link, err := decode(addr)
		if err != nil {
			return false, errors.Wrap(err, "fseg: decoding list entry")
		}
		addr = link.Next
	}
	return false, nil
}
