// Package watcher re-runs a callback whenever a transaction file changes.
//
// The file's directory is watched with fsnotify so that editors that save by
// renaming a temporary file are still noticed. Bursts of events are
// debounced into a single callback.
//
// Example usage:
//
//	w, err := watcher.New("baskets.txt", 200*time.Millisecond, func(path string) error {
//		return remine(path)
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := w.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
package watcher
