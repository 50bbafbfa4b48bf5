// Package nodeid defines the opaque identifiers used to address nodes in a
// graph, and the paths that address nodes nested inside subgraphs.
package nodeid

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// ID is an opaque, process-unique node identifier. Fresh IDs never collide
// within one process lifetime, which request/response correlation and
// monitor addressing both rely on.
type ID ulid.ULID

// New returns a freshly generated ID.
func New() ID {
	return ID(ulid.Make())
}

// String returns the canonical text form of the ID.
func (id ID) String() string {
	return ulid.ULID(id).String()
}

// IsZero reports whether the ID is the zero value, which is never produced
// by New.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Path addresses a node from the root graph down through nested subgraphs.
// The last element is the node itself; every preceding element is the
// subgraph node containing it.
type Path []ID

// Child returns a new Path extended by one element. The receiver is not
// modified and the result shares no backing storage with it.
func (p Path) Child(id ID) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = id
	return out
}

// Last returns the final element of the path.
func (p Path) Last() (ID, bool) {
	if len(p) == 0 {
		return ID{}, false
	}
	return p[len(p)-1], true
}

// Owner returns the element one level above the last, i.e. the node that
// contains the addressed node. Monitor nodes are always one level deeper
// than the node they observe, so this is the observed node's ID.
func (p Path) Owner() (ID, bool) {
	if len(p) < 2 {
		return ID{}, false
	}
	return p[len(p)-2], true
}

// Contains reports whether the path passes through the given ID.
func (p Path) Contains(id ID) bool {
	for _, el := range p {
		if el == id {
			return true
		}
	}
	return false
}

// Equal checks for element-wise equality between two paths.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Key serializes the path into its canonical string representation, usable
// as a map key.
func (p Path) Key() string {
	var sb strings.Builder
	for i, el := range p {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(el.String())
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (p Path) String() string {
	return p.Key()
}
