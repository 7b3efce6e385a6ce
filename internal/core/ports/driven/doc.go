// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - PassageStore: Passage persistence plus keyword and vector search
//   - ThreadStore: Chat thread and message persistence
//   - EvalStore: Evaluation run, checkpoint and result persistence
//   - LLMProvider: Language model completion, streaming and embeddings
//   - ConfigStore: Application configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
