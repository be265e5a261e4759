// Package access computes which assets a caller identity may see.
package access

import "sort"

// Scope is the set of asset ids a caller may see. The administrative bypass
// is represented as "no restriction" instead of enumerating every asset id,
// which keeps the admin path cheap on large inventories.
type Scope struct {
	unrestricted bool
	ids          map[string]struct{}
}

// Unrestricted returns the universal scope used for administrators.
func Unrestricted() Scope {
	return Scope{unrestricted: true}
}

// NewScope returns a scope allowing exactly the given asset ids.
func NewScope(ids ...string) Scope {
	s := Scope{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// IsUnrestricted reports whether the scope bypasses asset filtering.
func (s Scope) IsUnrestricted() bool {
	return s.unrestricted
}

// Allows reports whether the scope includes the asset id.
func (s Scope) Allows(assetID string) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.ids[assetID]
	return ok
}

// Len returns the number of enumerated asset ids; 0 for unrestricted scopes.
func (s Scope) Len() int {
	return len(s.ids)
}

// IDs returns the enumerated asset ids in sorted order.
func (s Scope) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Scope) add(ids []string) {
	if s.ids == nil {
		s.ids = make(map[string]struct{})
	}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
}
