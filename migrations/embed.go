// Package migrations holds the goose SQL migrations applied by worker-manager and certctl.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
