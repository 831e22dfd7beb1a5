package webassets

import "embed"

// Files contains the embedded operator console page.
//
//go:embed *.html
var Files embed.FS
