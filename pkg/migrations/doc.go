/*
Package migrations runs one-shot data migrations against node-local state.

Migrations register by name, run in lexicographic order, and record success
in a flat JSON ledger. A failed migration never blocks the rest of the
sweep; it is retried on the next run because only successes reach the
ledger. Every migration must therefore be idempotent.
*/
package migrations
