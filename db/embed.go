// Package db embeds the checkout service schema.
package db

import _ "embed"

// Schema holds the idempotent DDL for carts, preferences and the
// submitted order log.
//
//go:embed migrations/001_schema.sql
var Schema string
