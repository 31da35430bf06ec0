// Package mocks provides gomock doubles for the gateway's repository and
// auth ports.
//
// The mocks are generated with go.uber.org/mock (gomock) from the interfaces
// in internal/core and internal/ports. To regenerate after an interface
// change, run:
//
//	go generate ./internal/mocks
package mocks

// The registry repositories have hand-written in-memory fakes in
// internal/testutil instead of gomock doubles: most tests want a working
// store, not per-call expectations.

// Mock for the join record store port (ValidateJoin, Exists, FindRelated,
// List, DeleteMatching, DeleteTouching), used where tests need to force repository
// failures.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=join_record_repository_mock.go github.com/openmesh/meshgate/internal/core JoinRecordRepository

// Mock for the bearer-token verifier port.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=token_verifier_mock.go github.com/openmesh/meshgate/internal/ports TokenVerifier
