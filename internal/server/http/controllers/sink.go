package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rzbill/ledger/internal/notification"
)

// sseSink writes notifications as Server-Sent Events.
type sseSink struct {
	w http.ResponseWriter
	r *http.Request
}

// Send formats and sends a notification as an SSE data event.
//
// The notification is JSON-encoded and sent with the "data: " prefix followed
// by two newlines as required by the SSE specification. The SSE event id is
// the notification id, so EventSource clients resume natively.
func (s sseSink) Send(n *notification.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("id: ")); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte(strconv.FormatUint(n.ID, 10))); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\ndata: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n\n"))
	return err
}

// Comment sends an SSE comment line, used as a heartbeat.
func (s sseSink) Comment(text string) error {
	if _, err := s.w.Write([]byte(": " + text + "\n\n")); err != nil {
		return err
	}
	return nil
}

// Context returns the request context for cancellation.
func (s sseSink) Context() context.Context {
	return s.r.Context()
}

// Flush flushes the HTTP response writer if it supports flushing.
//
// This ensures that SSE events are immediately sent to the client.
func (s sseSink) Flush() error {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
