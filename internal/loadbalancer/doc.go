// Package loadbalancer binds the immutable backend list to a selection
// strategy and hands out one backend per admitted connection.
package loadbalancer
