package cmsblog

import "embed"

// PublicAssets holds the stylesheet, the search and pagination script, and
// the cover placeholder served under /public/.
//
//go:embed public/*
var PublicAssets embed.FS
