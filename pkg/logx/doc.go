// Package logx configures remindbot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional chat sink for operators (min-level + rate limiting)
package logx
