package scope

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Columns names the table columns a predicate constrains. Call sites
// pass their own qualified names, so one builder serves beneficiary
// listings, delivery metrics and sync pulls alike.
type Columns struct {
	EntityID    string
	StaffUserID string
}

// RequestFilters carries the caller-supplied explicit filters. An
// explicit entity id or id list is a manual override: it replaces the
// role-derived scope for the entity dimension. An explicit staff id
// replaces the self filter.
type RequestFilters struct {
	EntityID    *uuid.UUID
	EntityIDs   []uuid.UUID
	StaffUserID *uuid.UUID
}

// Predicate accumulates AND-conjuncts with deferred argument numbering,
// so it can be spliced into any base query.
type Predicate struct {
	conds []string
	args  []any
}

// NewPredicate returns an empty predicate.
func NewPredicate() *Predicate {
	return &Predicate{}
}

// And appends a conjunct. Use one `?` per argument; placeholders are
// renumbered when the predicate is rendered.
func (p *Predicate) And(cond string, args ...any) *Predicate {
	if strings.Count(cond, "?") != len(args) {
		panic(fmt.Sprintf("scope: predicate %q wants %d args, got %d", cond, strings.Count(cond, "?"), len(args)))
	}
	p.conds = append(p.conds, cond)
	p.args = append(p.args, args...)
	return p
}

// Empty reports whether no conjuncts were added.
func (p *Predicate) Empty() bool {
	return len(p.conds) == 0
}

// SQL renders the conjuncts joined by AND, numbering arguments from
// start. Returns "" and no args when the predicate is empty.
func (p *Predicate) SQL(start int) (string, []any) {
	if len(p.conds) == 0 {
		return "", nil
	}
	var b strings.Builder
	pos := start
	for i, cond := range p.conds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		for _, ch := range cond {
			if ch == '?' {
				fmt.Fprintf(&b, "$%d", pos)
				pos++
				continue
			}
			b.WriteRune(ch)
		}
	}
	args := make([]any, len(p.args))
	copy(args, p.args)
	return b.String(), args
}

// Where renders a full WHERE clause, or "" when empty.
func (p *Predicate) Where(start int) (string, []any) {
	sql, args := p.SQL(start)
	if sql == "" {
		return "", nil
	}
	return " WHERE " + sql, args
}

// BuildPredicate translates request filters plus the role-derived scope
// into a predicate, honouring the precedence contract:
//
//  1. explicit entity id wins over everything for the entity dimension;
//  2. else an explicit id list wins;
//  3. else the scope filter applies — an empty ByEntityIDs set renders a
//     clause guaranteed to match zero rows, and the self filter yields
//     unless the request names its own staff id;
//  4. other request filters are appended by the caller via And and are
//     never overridden by scope.
func BuildPredicate(cols Columns, req RequestFilters, f EntityFilter) *Predicate {
	p := NewPredicate()

	// Entity dimension. The self filter lives on the staff dimension and
	// is handled below, so it adds no entity clause here.
	switch {
	case req.EntityID != nil:
		p.And(cols.EntityID+" = ?", *req.EntityID)
	case len(req.EntityIDs) > 0:
		p.And(cols.EntityID+" = ANY(?)", req.EntityIDs)
	default:
		switch f.Kind() {
		case FilterUnrestricted, FilterBySelfStaff:
			// no entity predicate
		case FilterByEntityIDs:
			// An empty slice still renders the clause: ANY over an
			// empty array matches zero rows.
			p.And(cols.EntityID+" = ANY(?)", f.IDs())
		}
	}

	// Staff dimension. A request-supplied staff id wins over the
	// role-derived self filter.
	switch {
	case req.StaffUserID != nil:
		p.And(cols.StaffUserID+" = ?", *req.StaffUserID)
	case f.Kind() == FilterBySelfStaff:
		p.And(cols.StaffUserID+" = ?", f.StaffID())
	}
	return p
}

// NeedsPostFilter reports whether the entity scope has to be applied
// post-hoc against resolved hierarchy chains instead of in SQL. That is
// the case for id-set scopes over rows that reference entities at any
// hierarchy level, unless the request overrides the entity dimension
// explicitly.
func NeedsPostFilter(req RequestFilters, f EntityFilter) bool {
	if req.EntityID != nil || len(req.EntityIDs) > 0 {
		return false
	}
	return f.Kind() == FilterByEntityIDs
}

// SQLScope returns the filter to hand to BuildPredicate when the entity
// scope is applied post-hoc: the id-set restriction is lifted from the
// SQL and enforced by FilterInScope instead.
func SQLScope(req RequestFilters, f EntityFilter) EntityFilter {
	if NeedsPostFilter(req, f) {
		return Unrestricted()
	}
	return f
}
