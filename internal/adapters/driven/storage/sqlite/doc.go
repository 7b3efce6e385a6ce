// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - ThreadStore: chat thread and message persistence
//   - PassageStore: passage persistence with vector and FTS5 keyword search
//   - EvalStore: evaluation run, checkpoint and result persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.ruhroh/data/ruhroh.db
package sqlite
