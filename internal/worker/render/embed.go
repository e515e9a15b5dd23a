package render

import _ "embed"

//go:embed viewer.html
var viewerHTML []byte
