// Package storage persists the reminder table as a single document.
//
// Backends:
//   - "file": JSON document on an afero filesystem, replaced atomically (temp + rename)
//   - "sqlite": SQLite database, one transaction per save
//
// Older documents stored each task as a positional JSON array; Record decodes
// both shapes and always encodes the object shape.
package storage
