// Package model contains the plain domain types of the data-mesh gateway:
// the service registry (LogicModule, LogicModuleModel, Relationship) and the
// join engine's materialised edges (JoinRecord). These are persistence- and
// transport-agnostic; internal/data/postgres maps them to rows and
// internal/http maps them to JSON.
package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// LogicModule is a registered backend microservice.
type LogicModule struct {
	ID           int64     `json:"id"            db:"id"`
	EndpointName string    `json:"endpoint_name" db:"endpoint_name"`
	Endpoint     string    `json:"endpoint"      db:"endpoint"`
	DocsEndpoint string    `json:"docs_endpoint" db:"docs_endpoint"`
	IsLocal      bool      `json:"is_local"      db:"is_local"`
	CreatedAt    time.Time `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"    db:"updated_at"`
}

// LogicModuleModel is a single resource type within a logic module.
type LogicModuleModel struct {
	ID                      int64     `json:"id"                        db:"id"`
	LogicModuleEndpointName string    `json:"logic_module_endpoint_name" db:"logic_module_endpoint_name"`
	Model                   string    `json:"model"                     db:"model"`
	Endpoint                string    `json:"endpoint"                  db:"endpoint"`
	LookupFieldName         string    `json:"lookup_field_name"         db:"lookup_field_name"`
	IsLocal                 bool      `json:"is_local"                  db:"is_local"`
	CreatedAt               time.Time `json:"created_at"                db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"                db:"updated_at"`
}

// Relationship is a directed edge type between two LogicModuleModels.
type Relationship struct {
	ID           int64     `json:"id"                      db:"id"`
	OriginModel  string    `json:"origin_model"            db:"origin_model"`
	RelatedModel string    `json:"related_model"           db:"related_model"`
	Key          string    `json:"key"                     db:"key"`
	FKFieldName  string    `json:"fk_field_name,omitempty" db:"fk_field_name"`
	CreatedAt    time.Time `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"              db:"updated_at"`
}

// JoinRecord is a materialised instance of a Relationship connecting two
// actual records. Exactly one of (RecordID, RecordUUID) and exactly one of
// (RelatedRecordID, RelatedRecordUUID) is populated, per spec invariant.
type JoinRecord struct {
	ID                int64      `json:"id"                           db:"id"`
	RelationshipID    int64      `json:"relationship_id"              db:"relationship_id"`
	RecordID          *int64     `json:"record_id,omitempty"          db:"record_id"`
	RecordUUID        *uuid.UUID `json:"record_uuid,omitempty"        db:"record_uuid"`
	RelatedRecordID   *int64     `json:"related_record_id,omitempty"  db:"related_record_id"`
	RelatedRecordUUID *uuid.UUID `json:"related_record_uuid,omitempty" db:"related_record_uuid"`
	Organization      *uuid.UUID `json:"organization,omitempty"       db:"organization"`
	CreatedAt         time.Time  `json:"created_at"                   db:"created_at"`
}

// PKRef carries a single typed primary key: exactly one of ID/UUID is set.
// It is the common currency the mesh orchestrator and join store exchange so
// that string-typed dual-purpose fields never appear at a package boundary.
type PKRef struct {
	ID   *int64
	UUID *uuid.UUID
}

// IsZero reports whether neither field is populated.
func (r PKRef) IsZero() bool {
	return r.ID == nil && r.UUID == nil
}

// String renders the populated side for logging/diagnostics.
func (r PKRef) String() string {
	switch {
	case r.UUID != nil:
		return r.UUID.String()
	case r.ID != nil:
		return strconv.FormatInt(*r.ID, 10)
	default:
		return ""
	}
}
