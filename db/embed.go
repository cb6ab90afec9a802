// Package db embeds the storefront schema so the server can bootstrap its
// own tables on startup.
package db

import _ "embed"

// Schema holds the idempotent DDL for all storefront tables: sites, users,
// products, coupons and their usage counters, orders, order history, and
// the per-site order reference sequences.
//
//go:embed migrations/001_schema.sql
var Schema string
