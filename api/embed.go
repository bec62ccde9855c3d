// Package api embeds the HTTP API description served under /api/docs.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
