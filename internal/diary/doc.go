// Package diary manages journal entries and their asynchronous emotion
// analysis. Creating or editing an entry enqueues an automatic analysis
// task; edits also clear the cached snapshot so stale results never
// describe rewritten content. Manual and admin triggers always enqueue
// new work regardless of any cached snapshot.
package diary
