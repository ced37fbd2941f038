// Package storage writes collection results to disk.
//
// Each target account gets <dir>/<username>.json holding its
// models.CollectedData. Writes go to a temporary file in the same directory
// and are renamed into place, so readers never see a partial file.
//
// Usage:
//
//	manager, err := storage.NewManager("results")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := manager.Save("natgeo", data); err != nil {
//	    log.Printf("Failed to save result: %v", err)
//	}
package storage
