package database

import (
	"context"
	"log"
	"time"
)

// StartJanitor deletes expired rows on the given interval until ctx is done.
// Runs one sweep immediately so restarts do not wait a full interval.
func (db *DB) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		db.sweep()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("[Janitor] Stopped")
				return
			case <-ticker.C:
				db.sweep()
			}
		}
	}()
}

func (db *DB) sweep() {
	results, sessions, err := db.CleanupExpired()
	if err != nil {
		log.Printf("[Janitor] Cleanup failed: %v", err)
		return
	}
	if results > 0 || sessions > 0 {
		log.Printf("[Janitor] Deleted %d expired results and %d expired sessions", results, sessions)
	}
}
