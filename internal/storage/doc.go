// Package storage implements the repository collaborators on SQLite:
// actions, action plans, line plans, frequencies, definitions, task
// occurrences and notification rows.
//
// One Store owns the database handle and migrations; the per-entity
// sub-stores are thin views over it that satisfy the capability
// interfaces declared by their consumers.
package storage
