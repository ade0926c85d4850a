// The main package for the catalog executable.
//
// Commands:
//   - build: loads the record bundle (directory or Postgres table), plans every
//     page, compiles the search shards and writes the artifact tree to the
//     output directory, optionally mirrored to GCS. A completion event goes to
//     Pub/Sub when a topic is configured.
//   - scrub: removes placeholder sample images from the bundle using learned
//     prefix signatures and a persisted verdict cache.
//   - serve: previews the output directory with /healthz and /metrics.
//
// Configuration comes from an optional file plus CATALOG_* environment
// variables. build and scrub hold a lock file in the data directory.
package main

import (
	"github.com/JakeFAU/review-catalog/cmd"
)

func main() {
	cmd.Execute()
}
