package model

// RespData is the primary backend's decoded response body. It is either a
// single object (map) or a list of objects, decoded once by the dispatcher
// and threaded through the mesh orchestrator and aggregation layer. It is a
// distinct value object so the inbound request body is never aliased or
// mutated in place.
type RespData struct {
	// Object holds the decoded body when the backend returned a single resource.
	Object map[string]any
	// List holds the decoded body when the backend returned an array of resources.
	List []map[string]any
	// IsList reports which of Object/List is populated.
	IsList bool
}

// Items returns the response as a slice regardless of cardinality, so
// per-element fan-out code never special-cases a single object.
func (r RespData) Items() []map[string]any {
	if r.IsList {
		return r.List
	}
	if r.Object == nil {
		return nil
	}
	return []map[string]any{r.Object}
}

// RelationshipParam is the canonical metadata record for one relationship
// key the client asked to process, as resolved from the registry.
type RelationshipParam struct {
	RelationshipKey    string
	Service            string // logic module endpoint_name serving the related model
	Path               string // backend path for the related model's collection endpoint
	OriginModelPKName  string
	RelatedModelPKName string
	FKFieldName        string
	IsForwardLookup    bool
}

// MeshMode is the set of query-flag modes that drive the mesh orchestrator.
type MeshMode struct {
	Join      bool
	Extend    bool
	Aggregate bool
}

// Any reports whether at least one mode flag is set.
func (m MeshMode) Any() bool {
	return m.Join || m.Extend || m.Aggregate
}

// RelationshipOp is a per-relationship value object built fresh for each
// sub-object the orchestrator processes, so no shared state is mutated
// across relationships.
type RelationshipOp struct {
	RelationshipKey string
	Op              string // "create" or "update"
	Body            map[string]any
	PrimaryPK       string
	RelatedPK       string
	FKField         string
}

// MeshErrors collects per-relationship failures so that a backend error in
// one relationship never aborts sibling relationships or the primary
// response.
type MeshErrors map[string]string

// Set records an error message for a relationship key.
func (m MeshErrors) Set(key string, err error) {
	if err == nil {
		return
	}
	m[key] = err.Error()
}
