// Package integration exercises the catalog across process boundaries:
// the daemon over a real Unix socket, the file watcher driving re-ingest,
// and configuration feeding the engine. Run with -short to skip.
package integration
