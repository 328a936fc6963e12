// Package scope implements the role-derived data-access core: the
// EntityFilter scope variants, the scope calculator, the containment
// hierarchy resolver and the reusable query predicate builder.
package scope

import "github.com/google/uuid"

// EntityType identifies a level of the containment hierarchy.
type EntityType string

const (
	EntityProject    EntityType = "project"
	EntitySubproject EntityType = "subproject"
	EntityActivity   EntityType = "activity"
)

// IsValid reports whether the entity type is one of the known levels.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityProject, EntitySubproject, EntityActivity:
		return true
	default:
		return false
	}
}

// FilterKind enumerates the EntityFilter variants. Every consumer must
// switch exhaustively on it; adding a variant is a compile-visible change
// at each call site.
type FilterKind uint8

const (
	// FilterUnrestricted adds no entity predicate.
	FilterUnrestricted FilterKind = iota
	// FilterByEntityIDs restricts rows to an explicit id set. An empty
	// set means zero rows, never "no restriction".
	FilterByEntityIDs
	// FilterBySelfStaff restricts rows to those whose staff/submitter
	// column equals the principal's own id.
	FilterBySelfStaff
)

// EntityFilter is the scope a principal's roles grant. Construct it with
// Unrestricted, ByEntityIDs, BySelfStaff or NoAccess.
type EntityFilter struct {
	kind    FilterKind
	ids     []uuid.UUID
	staffID uuid.UUID
}

// Unrestricted returns the admin-tier filter.
func Unrestricted() EntityFilter {
	return EntityFilter{kind: FilterUnrestricted}
}

// ByEntityIDs returns a filter restricted to the given id set.
func ByEntityIDs(ids []uuid.UUID) EntityFilter {
	cp := make([]uuid.UUID, len(ids))
	copy(cp, ids)
	return EntityFilter{kind: FilterByEntityIDs, ids: cp}
}

// NoAccess returns a filter matching zero rows.
func NoAccess() EntityFilter {
	return EntityFilter{kind: FilterByEntityIDs, ids: []uuid.UUID{}}
}

// BySelfStaff returns the field-operator self filter.
func BySelfStaff(staffID uuid.UUID) EntityFilter {
	return EntityFilter{kind: FilterBySelfStaff, staffID: staffID}
}

// Kind returns the filter variant.
func (f EntityFilter) Kind() FilterKind { return f.kind }

// IDs returns the restricted id set. Only meaningful for FilterByEntityIDs.
func (f EntityFilter) IDs() []uuid.UUID {
	cp := make([]uuid.UUID, len(f.ids))
	copy(cp, f.ids)
	return cp
}

// StaffID returns the self-filter principal id. Only meaningful for
// FilterBySelfStaff.
func (f EntityFilter) StaffID() uuid.UUID { return f.staffID }

// Contains reports whether id is in the restricted set.
func (f EntityFilter) Contains(id uuid.UUID) bool {
	for _, v := range f.ids {
		if v == id {
			return true
		}
	}
	return false
}
