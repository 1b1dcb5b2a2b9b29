// Package logx configures transferbot's structured logging.
//
// It wraps zerolog in a small value type (logx.Logger) to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional chat sink (min-level + rate limiting) for operator alerts
package logx
