// Package chat orchestrates streaming support conversations.
//
// A session is created with StartSession, producing the public
// "session_<id>" identifier and its "conversation_session_<id>" memory
// key. StreamChat runs one user turn: the message is persisted unless
// it verbatim repeats the lone initial message, conversation memory is
// updated, a background analysis task is fired without blocking the
// turn, and the model's reply is streamed as Delta events. The
// assistant message is persisted only when the stream finishes
// naturally with a Done event; cancelled or failed streams leave no
// partial assistant record.
package chat
