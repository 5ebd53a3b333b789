package rbac

import (
	"fmt"

	"github.com/castellan-io/castellan/internal/shared"
)

// Require is the coarse authorization gate: it allows only when the actor's
// set is a superset of required (AND semantics). It has no knowledge of which
// resource is being acted on.
func Require(actor Set, required ...Permission) error {
	for _, p := range required {
		if !actor.Has(p) {
			return shared.Forbidden(fmt.Sprintf("permission denied: missing %s", p))
		}
	}
	return nil
}
