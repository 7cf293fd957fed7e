package transport

import (
	"bufio"
	"context"
	"io"
	"log/slog"

	"github.com/tombee/odoo-mcp/internal/mcpsession"
)

// StdioServer serves one MCP session over stdin/stdout, one JSON-RPC
// frame per line (§4.9). stdout is reserved exclusively for frames;
// all logging goes to stderr via the shared logger.
type StdioServer struct {
	session *mcpsession.Session
	manager *Manager
	logger  *slog.Logger
}

// NewStdioServer wraps session for stdio framing.
func NewStdioServer(session *mcpsession.Session, manager *Manager, logger *slog.Logger) *StdioServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioServer{session: session, manager: manager, logger: logger}
}

// Serve reads newline-delimited frames from r and writes responses to
// w until r reaches EOF or ctx is cancelled, then terminates the
// session.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.manager.Register(s.session.ID, KindStdio, s.session)
	defer s.manager.Unregister(s.session.ID)
	defer s.session.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	writer := bufio.NewWriter(w)
	defer writer.Flush()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame := make([]byte, len(line))
		copy(frame, line)

		response := DispatchFrame(ctx, s.session, s.logger, frame)
		if response == nil {
			continue
		}
		if _, err := writer.Write(response); err != nil {
			return err
		}
		if err := writer.WriteByte('\n'); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}
