// Package sse implements the newline-delimited "data: <payload>" framing used
// on both legs of the analysis pipeline: reading the upstream LLM stream and
// emitting progress events to the browser. Producer and consumer share this
// codec so the two ends cannot drift apart.
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Done is the sentinel payload that terminates an upstream chat-completion
// stream. It is only ever seen on the upstream leg.
const Done = "[DONE]"

const dataPrefix = "data: "

// Scanner incrementally extracts data payloads from a byte stream. Bytes are
// consumed chunk by chunk; a trailing partial line is retained until the next
// read completes it. Lines without the "data: " prefix are ignored.
type Scanner struct {
	r     io.Reader
	buf   []byte
	rest  string
	queue []string
	err   error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		r:   r,
		buf: make([]byte, 4096),
	}
}

// Next returns the next non-empty data payload, with the prefix stripped and
// whitespace trimmed. It returns io.EOF when the stream is exhausted.
func (s *Scanner) Next() (string, error) {
	for {
		for len(s.queue) > 0 {
			line := s.queue[0]
			s.queue = s.queue[1:]
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			payload := strings.TrimSpace(line[len(dataPrefix):])
			if payload == "" {
				continue
			}
			return payload, nil
		}

		if s.err != nil {
			return "", s.err
		}

		n, err := s.r.Read(s.buf)
		if n > 0 {
			s.rest += string(s.buf[:n])
			lines := strings.Split(s.rest, "\n")
			s.rest = lines[len(lines)-1]
			s.queue = lines[:len(lines)-1]
		}
		if err != nil {
			s.err = err
			// The final fragment may be a complete line missing its newline.
			if s.rest != "" {
				s.queue = append(s.queue, s.rest)
				s.rest = ""
			}
		}
	}
}

// Writer emits data frames, one per event, flushing after each so the client
// sees events as they happen rather than when the response buffer fills.
type Writer struct {
	w     io.Writer
	flush func()
}

func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

// Send marshals v as JSON and writes it as a single "data: <json>\n\n" frame.
func (w *Writer) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.flush()
	return nil
}
