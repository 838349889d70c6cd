// Package session manages conversational history keyed by the
// (application, user, session) triple. Sessions live in memory for the
// lifetime of the process; an optional JSONL store persists every turn and
// reloads history when a session is recreated.
package session
