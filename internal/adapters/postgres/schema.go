package postgres_adapter

import _ "embed"

// Schema creates every table the service reads or writes. It is idempotent.
//
//go:embed schema.sql
var Schema string
