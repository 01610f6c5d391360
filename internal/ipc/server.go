package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// requestTimeout bounds how long one client may hold a connection.
const requestTimeout = 2 * time.Second

// Session answers validated commands for the socket server.
type Session interface {
	Command(context.Context, Command) Reply
}

// SessionFunc adapts a function to the Session interface.
type SessionFunc func(context.Context, Command) Reply

func (f SessionFunc) Command(ctx context.Context, cmd Command) Reply {
	return f(ctx, cmd)
}

// Serve answers one command per connection until ctx is cancelled or the
// listener closes. Unknown commands are refused without reaching session.
func Serve(ctx context.Context, listener net.Listener, session Session, logger *slog.Logger) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer c.Close()
			serveConn(ctx, c, session, logger)
		}(conn)
	}
}

func serveConn(ctx context.Context, conn net.Conn, session Session, logger *slog.Logger) {
	_ = conn.SetDeadline(time.Now().Add(requestTimeout))
	enc := json.NewEncoder(conn)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		_ = enc.Encode(Response{OK: false, Error: fmt.Sprintf("read request: %v", err)})
		return
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		_ = enc.Encode(Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)})
		return
	}

	cmd, err := ParseCommand(string(req.Command))
	if err != nil {
		_ = enc.Encode(Response{OK: false, Error: err.Error()})
		return
	}

	resp, err := session.Command(ctx, cmd).encode()
	if err != nil && logger != nil {
		logger.Warn("ipc reply encoding failed", "command", string(cmd), "error", err.Error())
	}
	if logger != nil && cmd.Intent() {
		logger.Debug("ipc intent served", "command", string(cmd), "outcome", resp.Message, "state", resp.State)
	}
	_ = enc.Encode(resp)
}
