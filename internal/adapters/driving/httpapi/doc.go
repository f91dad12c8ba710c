// Package httpapi exposes the query and ingestion services over HTTP.
//
// Answers are streamed as text/plain and flushed token by token. A request
// rejected before streaming starts gets a JSON {errorKind, message} body
// with a status derived from the error kind. Once streaming has started
// the status is always 200: notices and the "[error] " diagnostic are set
// apart from answer text by a blank line, and the X-Stream-State trailer
// reports whether the answer completed, failed or was cancelled. Closing
// the connection cancels the answer stream.
package httpapi
