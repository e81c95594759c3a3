// Package database provides session management on top of Bun: connection
// options, per-dialect connectors, the entity model, transactions, schema
// lifecycle, query hooks, logging and store error classification.
package database
