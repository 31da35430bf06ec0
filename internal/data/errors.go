package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Logic module registry sentinels.
	ErrLogicModuleNotFound      = errors.New("logic module not found")
	ErrLogicModuleAlreadyExists = errors.New("logic module already exists")

	// Logic module model registry sentinels.
	ErrLogicModuleModelNotFound = errors.New("logic module model not found")

	// Relationship registry sentinels.
	ErrRelationshipNotFound = errors.New("relationship not found")

	// Join record sentinels.
	ErrJoinRecordNotFound      = errors.New("join record not found")
	ErrJoinRecordAlreadyExists = errors.New("join record already exists")
	ErrOrganizationIDRequired  = errors.New("organization_id is required")
)
