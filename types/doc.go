// Package types holds query filters, paging and ordering values shared by
// repositories.
package types
