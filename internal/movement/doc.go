// Package movement derives kinematic variables from servosphere recordings.
//
// Responsibilities: position, distance, bearing, turn angle, turn velocity
// and velocity columns computed from the raw dT/dx/dy displacement columns
// of each recording table.
// Key types: Table, Value, Entry, Stage, Pipeline.
//
// Every derivation is a pure per-table transform. Tables never share state,
// row count and row order are never changed, and columns are only added.
// No file, database or logging code is allowed in this package.
package movement
