// Package watcher follows local catalog sources and re-ingests them when
// their files change.
//
// A source may be a single JSON file or a data directory holding the
// standard per-kind files. Changes are seen through fsnotify, with
// polling as a fallback where fsnotify is unavailable, and debounced so a
// dump written in several steps triggers one ingest.
//
//	targets, _, err := watcher.ResolveTargets(sources)
//	if err != nil {
//	    return err
//	}
//	w, err := watcher.New(targets, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Start(ctx)
//
//	r := watcher.NewRefresher(client.Ingest, w.Targets())
//	r.Run(ctx, w.Events())
package watcher
