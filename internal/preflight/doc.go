// Package preflight checks that the machine can host a tunebook catalog:
// the data directory is writable and has room for the dumps, the process
// may open enough files, the SQLite driver works, no other process holds
// the catalog, and the configured local sources exist.
//
// Use the Checker type to run every check:
//
//	c := preflight.New(preflight.WithOutput(os.Stdout))
//	results := c.RunAll(ctx, preflight.Target{DataDir: dir})
//	c.PrintResults(results)
//	if c.HasCriticalFailures(results) {
//		// refuse to continue
//	}
package preflight
