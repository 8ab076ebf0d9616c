// Package api exposes the HTTP surface of solace-gateway: chat session
// lifecycle with SSE response streaming, diary entries with analysis
// triggers, and task queue administration.
package api
