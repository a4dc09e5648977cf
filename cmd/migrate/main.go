// migrate applies DB migrations from embedded SQL. The server migrates on
// startup; this binary exists for running them out of band, and for down
// migrations. Uses DATABASE_URL when set, else the SQLite file under DATA_DIR.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/moneywright/moneywright/internal/config"
	"github.com/moneywright/moneywright/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	if err := migrate.Run(cfg.DatabaseDSN(), *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
