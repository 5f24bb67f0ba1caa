// Package command decodes flight instruction sequences and executes them
// against the single vehicle session owned by a Dispatcher.
//
// Entries run strictly in order. Malformed and unknown entries are skipped,
// a failed connect, a flight command without a session, a handler exception
// or close end the sequence.
package command
