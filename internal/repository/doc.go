// Package repository implements the storage ports on MySQL.  Missing
// rows are reported with the model.Err*NotFound sentinels; driver
// failures are wrapped with the failing statement's name so handlers can
// log them and answer with a generic 500.
package repository
