// Package audit writes the append-only JSONL trail of executed flight commands.
//
// One line per processed entry: who asked, which vehicle, what command, how it
// ended and how long it took. Files rotate by size.
package audit
