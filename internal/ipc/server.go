package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const (
	maxRequestBytes = 4 << 10
	readTimeout     = 2 * time.Second
)

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Mux routes requests by command name.
type Mux map[string]HandlerFunc

func (m Mux) Handle(ctx context.Context, req Request) Response {
	if h, ok := m[req.Command]; ok {
		return h(ctx, req)
	}
	return Response{OK: false, Error: fmt.Sprintf("unknown command: %s", req.Command)}
}

// Serve accepts clients until ctx is cancelled or the listener closes.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
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
			_ = json.NewEncoder(c).Encode(serveOne(ctx, c, handler))
		}(conn)
	}
}

func serveOne(ctx context.Context, c net.Conn, handler Handler) Response {
	_ = c.SetReadDeadline(time.Now().Add(readTimeout))

	reader := bufio.NewReader(io.LimitReader(c, maxRequestBytes))
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return Response{OK: false, Error: fmt.Sprintf("read request: %v", err)}
	}

	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{OK: false, Error: fmt.Sprintf("decode request: %v", err)}
	}
	return handler.Handle(ctx, req)
}
