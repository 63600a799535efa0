// Package schemas embeds the JSON Schemas of the messages exchanged over RabbitMQ.
package schemas

import "embed"

// SchemasFS holds events/<event-name>/v<major>.json files.
//
//go:embed events
var SchemasFS embed.FS
