// Package memory implements the conversation memory window: a bounded,
// ordered buffer of recent messages per conversation that supplies
// context to the generation capability. The buffer is never global
// state; callers hold an explicit *Window.
package memory
