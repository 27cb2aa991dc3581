// Package docs holds the general Swagger annotations for the portsweep API.
// Endpoint annotations live on the handlers in internal/api/handlers; run
// `go generate ./docs` to rebuild the OpenAPI files under ./swagger.
//
//go:generate swag init -g swagger_docs.go -o ./swagger --dir ./,../internal/api/handlers,../internal/scanner,../internal/scanning --parseInternal --outputTypes go,json,yaml
package docs

// @title portsweep API
// @version 1.0
// @description Concurrent TCP connect port scanner. Start scans over REST or WebSocket and stream results as they resolve.
// @description
// @description ## Authentication
// @description When the server has api.api_key_hash set, every endpoint except health and version requires an API key
// @description in the `X-API-Key` header, as a bearer token, or as the `api_key` query parameter.
// @description
// @description ## WebSocket
// @description `GET /ws` upgrades to a WebSocket. Send `start-scan` and `stop-scan` messages; the server replies with
// @description `scan-started`, `scan-result`, `scan-complete`, `scan-stopped` and `error` messages.
//
// @contact.name portsweep
// @contact.url https://github.com/anstrom/portsweep
//
// @license.name MIT
// @license.url https://github.com/anstrom/portsweep/blob/main/LICENSE
//
// @BasePath /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description API key for authentication
