package calcgraph

import "fmt"

// SheetID is a stable, never-reused per-workbook sheet identifier.
type SheetID uint32

// InvalidSheetID is returned when a lookup fails.
const InvalidSheetID SheetID = ^SheetID(0)

// SheetRegistry is the bidirectional name<->id map for sheets. It is the
// source of truth for sheet iteration order; ids are never reused once a
// sheet is removed.
type SheetRegistry struct {
	names   []string // id -> name, "" if removed
	removed []bool
	byName  map[string]SheetID
	order   []SheetID // live sheets, in registration order
}

// NewSheetRegistry creates an empty registry.
func NewSheetRegistry() *SheetRegistry {
	return &SheetRegistry{byName: make(map[string]SheetID)}
}

// IDFor interns name on first use and returns its id.
func (r *SheetRegistry) IDFor(name string) SheetID {
	if id, ok := r.byName[name]; ok {
		return id
	}
	id := SheetID(len(r.names))
	r.names = append(r.names, name)
	r.removed = append(r.removed, false)
	r.byName[name] = id
	r.order = append(r.order, id)
	return id
}

// Lookup returns the id for name without interning.
func (r *SheetRegistry) Lookup(name string) (SheetID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Name returns the name for id, or "" if id is unknown or removed.
func (r *SheetRegistry) Name(id SheetID) (string, bool) {
	if int(id) >= len(r.names) || r.removed[id] {
		return "", false
	}
	return r.names[id], true
}

// Remove marks a sheet removed; its id is never reused.
func (r *SheetRegistry) Remove(id SheetID) error {
	if int(id) >= len(r.names) || r.removed[id] {
		return fmt.Errorf("%w: sheet id %d", ErrUnknownSheet, id)
	}
	r.removed[id] = true
	delete(r.byName, r.names[id])
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Sheets returns live sheet ids in registration order.
func (r *SheetRegistry) Sheets() []SheetID {
	out := make([]SheetID, len(r.order))
	copy(out, r.order)
	return out
}
