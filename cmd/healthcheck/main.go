// Command healthcheck probes the vcsync database for container liveness
// checks. It exits 0 when the database opens and answers a ping.
package main

import (
	"os"

	sqliteadapter "github.com/ericfisherdev/vcsync/internal/adapter/driven/sqlite"
)

func main() {
	os.Exit(check())
}

func check() int {
	dbPath := os.Getenv("VCSYNC_DB_PATH")
	if dbPath == "" {
		dbPath = "vcsync.db"
	}

	db, err := sqliteadapter.NewDB(dbPath)
	if err != nil {
		return 1
	}
	_ = db.Close()

	return 0
}
