// Package logx is the structured logging layer used across giveawaybot.
//
// Logger wraps zerolog and keeps:
//   - console output readable (short timestamp + short caller)
//   - file output JSON-structured
//   - an optional chat sink (min-level + rate limiting)
package logx
