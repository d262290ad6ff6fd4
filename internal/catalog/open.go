package catalog

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

// Open initializes the configured catalog.
// It returns (nil, nil) if the catalog is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	log = log.With(logx.String("comp", "catalog"), logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.Newf("unknown catalog driver: %s", driver)
	}
}
