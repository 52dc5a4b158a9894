// AngelaMos | 2026
// descriptor.go

package resource

import (
	"slices"
	"strings"
)

// Descriptor declares what a resource exposes to list queries. Search and
// ordering only ever touch the columns named here.
type Descriptor struct {
	// Name is the human label used in state conflict messages, e.g. "Movie".
	Name         string
	Searchable   []string
	Sortable     []string
	DefaultOrder string
}

func (d Descriptor) IsSortable(field string) bool {
	return slices.Contains(d.Sortable, field)
}

// OrderBy returns field when it is sortable, otherwise the default order.
func (d Descriptor) OrderBy(field string) string {
	field = strings.TrimSpace(field)
	if field != "" && d.IsSortable(field) {
		return field
	}
	return d.DefaultOrder
}

// ListQuery is a validated list request handed to a Store.
type ListQuery struct {
	Active *bool
	Search string
	Order  string
	Limit  int
	Offset int
}

// ParseActive returns nil when the filter is absent. Only a case-insensitive
// "true" selects active rows; any other value selects inactive ones.
func ParseActive(raw string, present bool) *bool {
	if !present {
		return nil
	}
	active := strings.EqualFold(strings.TrimSpace(raw), "true")
	return &active
}
