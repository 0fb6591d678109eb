// Package repository defines the persistence contracts consumed by the
// authentication core, the entity records they exchange, and the error
// taxonomy implementations must map their backend failures onto.
//
// Every call takes a context carrying a tenant scope (see [WithTenant]).
// Implementations must refuse to execute without one: a missing scope is a
// programming error, not a query that silently sees all tenants.
//
// Two implementations ship with the module: internal/postgres (pgx, row-level
// security via a per-transaction session variable) and internal/memory (used
// by tests and by embedders that bring their own durability).
package repository
