// Package migrations embeds the goose migrations of the role catalogue.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
