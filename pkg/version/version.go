package version

import (
	"fmt"

	"github.com/nevrhq/nevr/internal/vaultcodec"
)

// Version information set via ldflags at build time
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// VaultFormat is the vault wire format version this build reads and
// writes, so `nevr version` can surface a format mismatch before a
// push/pull command hits one.
const VaultFormat = vaultcodec.Version

// Info returns formatted version information, including the vault wire
// format this build speaks.
func Info() string {
	return fmt.Sprintf("nevr %s (commit %s, built %s)\nvault format: %d", Version, Commit, Date, VaultFormat)
}
