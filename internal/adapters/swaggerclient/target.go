package swaggerclient

import (
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/openmesh/meshgate/internal/adapters/speccache"
	"github.com/openmesh/meshgate/internal/domain/model"
)

// Target pairs a logic module registration with its cached spec document. A
// nil Doc skips operation resolution, which is how local logic modules and
// spec-less test doubles call through.
type Target struct {
	Module model.LogicModule
	Doc    *speccache.Document
}

// ExtractField evaluates a JMESPath expression against a decoded backend
// payload. Registry lookup_field_name values are usually a bare field name
// ("product_uuid"), which is itself a valid JMESPath identifier, but nested
// expressions ("data.product_uuid") work unchanged.
func ExtractField(data any, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("empty lookup field expression")
	}
	v, err := jmespath.Search(expr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate lookup field %q: %w", expr, err)
	}
	return v, nil
}
