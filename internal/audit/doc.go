// Package audit records who did what to which account or community.
//
// Entries are written asynchronously through a Writer so that request
// handlers never wait on SQLite. The write is best-effort: when the queue
// is full the entry is dropped with a warning.
package audit
