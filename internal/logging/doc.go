// Package logging configures slog for tunebook. Commands log to stderr;
// the daemon and the MCP server also write JSON lines to a rotating file
// under ~/.tunebook/logs, which `tunebook logs` reads back.
package logging
