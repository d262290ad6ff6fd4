// Package listener accepts TCP connections from clients announcing
// themselves and from operators. The protocol is line based: one command
// per line, answered by lines ending in one "OK ..." or "ERR ..." line.
//
//	hello <client>   client connected; runs connect-interval jobs that are due
//	run <job>        queue a job now
//	status           list the scheduler queue and running jobs
//	quit             close the connection
package listener

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	logx "github.com/bareos/bareos-sub019/pkg/logx"
)

const (
	maxLineLen         = 4096
	defaultIdleTimeout = 5 * time.Minute
)

var errQuit = errors.New("quit")

// HandlerFunc handles one command. It writes any detail lines to w and
// returns the text of the final OK line, or an error that becomes the ERR
// line.
type HandlerFunc func(ctx context.Context, w io.Writer, args []string) (string, error)

type Config struct {
	Addr        string
	IdleTimeout time.Duration // per connection; 0 means 5m
}

type Server struct {
	cfg     Config
	log     logx.Logger
	handler map[string]HandlerFunc

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func New(cfg Config, log logx.Logger) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	s := &Server{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "listener")),
		handler: map[string]HandlerFunc{},
		conns:   map[net.Conn]struct{}{},
	}
	s.handler["quit"] = func(context.Context, io.Writer, []string) (string, error) { return "bye", errQuit }
	return s
}

// RegisterHandler binds a command word (case-insensitive).
func (s *Server) RegisterHandler(cmd string, h HandlerFunc) {
	s.handler[strings.ToLower(cmd)] = h
}

// Addr returns the bound address once serving, else nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ListenAndServe binds cfg.Addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done, then closes every connection and
// waits for the handlers to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Info("listening", logx.String("addr", ln.Addr().String()))

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			_ = c.Close()
		}
		s.mu.Unlock()
	})
	defer stop()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return err
			}
			// Temporary failure such as EMFILE; back off instead of spinning.
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			s.log.Warn("accept failed", logx.Err(err), logx.Duration("retry_in", delay))
			time.Sleep(delay)
			continue
		}
		delay = 0

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()
	log := s.log.With(logx.String("remote", conn.RemoteAddr().String()))
	log.Debug("connection opened")

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 256), maxLineLen)
	w := bufio.NewWriter(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		if !sc.Scan() {
			if err := sc.Err(); err != nil && ctx.Err() == nil {
				log.Debug("connection read ended", logx.Err(err))
			}
			return
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		quit := s.dispatch(ctx, log, w, line)
		if err := w.Flush(); err != nil {
			log.Debug("write failed", logx.Err(err))
			return
		}
		if quit {
			return
		}
	}
}

// dispatch runs one command line and reports whether to close.
func (s *Server) dispatch(ctx context.Context, log logx.Logger, w *bufio.Writer, line string) bool {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	h, ok := s.handler[cmd]
	if !ok {
		writeLine(w, "ERR unknown command: "+fields[0])
		return false
	}
	msg, err := h(ctx, w, fields[1:])
	switch {
	case errors.Is(err, errQuit):
		writeLine(w, "OK "+msg)
		return true
	case err != nil:
		log.Debug("command failed", logx.String("cmd", cmd), logx.Err(err))
		writeLine(w, "ERR "+oneLine(err.Error()))
	default:
		writeLine(w, strings.TrimSpace("OK "+msg))
	}
	return false
}

func writeLine(w io.Writer, s string) {
	_, _ = io.WriteString(w, s+"\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
