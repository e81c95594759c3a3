// Package repository provides the generic per-entity repository built on Bun:
// filtered, ordered and paged reads, single and batch writes bound to a
// database session, and dialect aware upserts.
package repository
