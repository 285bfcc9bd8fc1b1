// Package appfs embeds files needed at runtime.
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
