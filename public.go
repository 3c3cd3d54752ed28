// Package ninegrid carries the embedded static assets for the grid page.
package ninegrid

import "embed"

//go:embed public
var PublicFS embed.FS
