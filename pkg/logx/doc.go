// Package logx configures onfly's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - A zero value that is a silent logger, so the engine can treat the
//     logger as an optional collaborator
package logx
