package service

import (
	"maps"

	"github.com/openmesh/meshgate/internal/domain/model"
)

// meshErrorsField and meshWarningsField are the response fields carrying
// per-relationship failures and soft warnings alongside the primary payload.
const (
	meshErrorsField   = "_mesh_errors"
	meshWarningsField = "_mesh_warnings"
)

// Render merges the primary response with the orchestrator's result into the
// final response body. Related payloads are already inlined into resp's
// items by the orchestrator; this layer only attaches the error/warning
// fields without mutating the primary payload maps.
//
// Object responses get the fields on the object itself. List responses are
// wrapped in a results envelope when there is anything to attach, since a
// JSON array cannot carry sibling fields.
func Render(resp model.RespData, res MeshResult) any {
	hasMeta := len(res.Errors) > 0 || len(res.Warnings) > 0

	if resp.IsList {
		if !hasMeta {
			return resp.List
		}
		out := map[string]any{"results": resp.List}
		attachMeta(out, res)
		return out
	}

	if resp.Object == nil {
		if !hasMeta {
			return nil
		}
		out := map[string]any{}
		attachMeta(out, res)
		return out
	}

	if !hasMeta {
		return resp.Object
	}
	out := maps.Clone(resp.Object)
	attachMeta(out, res)
	return out
}

func attachMeta(out map[string]any, res MeshResult) {
	if len(res.Errors) > 0 {
		out[meshErrorsField] = res.Errors
	}
	if len(res.Warnings) > 0 {
		out[meshWarningsField] = res.Warnings
	}
}
