// Package postgres implements the repository contracts over a pgx connection
// pool. Every row carries tenant_id and every statement filters by the
// tenant scope carried in the context; transactions additionally publish the
// tenant id as the app.tenant_id session variable for row-level security
// policies.
package postgres
