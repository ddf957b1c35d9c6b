package query

import (
	"strings"

	"github.com/pkg/errors"
)

// Ordering is the id order of a returned set of records.
type Ordering uint

const (
	Ascending Ordering = iota
	Descending
)

var orderingNames = map[string]Ordering{
	"asc":  Ascending,
	"desc": Descending,
}

// ToOrdering parses "asc" or "desc", ignoring case.
func ToOrdering(val string) (Ordering, error) {
	if o, ok := orderingNames[strings.ToLower(val)]; ok {
		return o, nil
	}
	return Ascending, errors.Errorf("unexpected ordering: %q", val)
}

func (o Ordering) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}
