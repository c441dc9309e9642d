// Package docs embeds the hand-maintained OpenAPI spec served at /docs.
package docs

import _ "embed"

//go:embed doc.json
var Spec []byte
