// Package protocol exposes an editing session over two transports: a
// line-oriented JSON command loop on stdio and an MCP tool surface.
// Both funnel into the same Session dispatch table.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// maxLineBytes bounds a single request line. Whole-class smali bodies
// arrive inline, so the limit is generous.
const maxLineBytes = 16 * 1024 * 1024

// Request is one line of the command protocol.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the reply to one request.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func failure(code string, err error) Response {
	return Response{Success: false, Code: code, Error: err.Error()}
}

// Loop reads newline-delimited requests from r and writes one response
// line per request to w. Malformed input produces a structured failure
// and the loop continues; only EOF (or a read error) ends it.
func (s *Session) Loop(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	enc := json.NewEncoder(w)

	s.log.Info("session started")
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		var res Response
		if err := json.Unmarshal(line, &req); err != nil {
			res = failure("InvalidArgument", fmt.Errorf("malformed request: %w", err))
		} else {
			res = s.Dispatch(req.Command, req.Args)
		}
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	s.log.Info("session ended")
	return nil
}
