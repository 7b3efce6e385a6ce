// Package domain defines the core business entities for Ruhroh.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Passage: A retrievable unit of document text
//   - RankedList / FusedResult: Per-query ranking artefacts
//   - QueryPlan: The transient state of one agentic retrieval turn
//   - StreamEvent: The typed event union streamed to chat clients
//   - EvalRun / EvalCheckpoint / EvalResult: Background evaluation records
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
