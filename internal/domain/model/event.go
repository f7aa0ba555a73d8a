// Package model contains domain models passed between layers.
package model

import "time"

// ChangeOp names the kind of write that produced a ChangeEvent.
type ChangeOp string

// Write operations published by the document store.
const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent is published by the document store after every successful write
// and fanned out to the watchers of the collection.
type ChangeEvent struct {
	Collection string
	DocumentID string
	Op         ChangeOp
	TS         time.Time
}
