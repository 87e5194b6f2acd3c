// Package directory resolves platform accounts (drivers, fleet companies,
// customers, admins) by email and replaces their password hashes. Postgres is
// the production backend; Memory serves tests and local runs.
package directory
