// Package storage persists performance snapshots.
//
// Two backends implement Backend: MemoryBackend, the default, and
// SQLiteBackend, which uses the pure-Go modernc.org/sqlite driver so the
// binary builds without cgo. Open picks one from configuration.
//
//	backend, err := storage.Open(cfg.Storage)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	snap := storage.NewSnapshot(diag.GetPerformanceStats(), time.Now())
//	if err := backend.Save(ctx, snap); err != nil {
//	    return err
//	}
//
// Snapshots older than the configured retention are removed by the
// maintenance scheduler through Cleanup.
package storage
