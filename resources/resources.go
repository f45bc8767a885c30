package resources

import "embed"

//go:embed spam
var FS embed.FS
