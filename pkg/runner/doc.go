// Package runner orchestrates agent invocations. A run loads the session
// history, appends the user message, drives the provider's tool loop, and
// yields an ordered event stream that always ends with exactly one terminal
// event. Runs against the same session key are serialized through the
// command queue.
package runner
