package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/iangodin/dhcpdb/queue"
	"github.com/iangodin/dhcpdb/store"
	"github.com/iangodin/dhcpdb/wire"
)

// ErrResource covers bind/socket/interface failures, fatal at server
// start (spec.md §7's resource-error kind).
var ErrResource = errors.New("resource error")

// Config configures a Server.
type Config struct {
	// Address to bind. Empty means bind one listener per IPv4 interface
	// address instead of a single socket; see DESIGN.md for the
	// bind-strategy decision (spec.md §9).
	Address string
	// Workers is the fixed worker-pool size per listener; 5 if zero
	// (spec.md §4.H).
	Workers int
	// Testing diverts every worker from dispatch to the frame formatter
	// (spec.md §4.H).
	Testing bool

	Grammar  *wire.Grammar
	Resolver wire.Resolver
	Reverse  wire.ReverseResolver
	Store    store.Store
	Log      zerolog.Logger
}

// Server runs one Listener per bind address and blocks until one of
// them reports a fatal error or the context is canceled, mirroring the
// errs-channel shape of vendor/go.universe.tf/netboot/pixiecore's
// Server.Serve.
type Server struct {
	cfg       Config
	mu        sync.Mutex
	listeners []*Listener
}

// New returns a Server ready to Serve.
func New(cfg Config) *Server {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Server{cfg: cfg}
}

// Serve binds every listener and blocks until one exits with a fatal
// error or ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	addrs, err := bindAddresses(s.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrResource, err)
	}

	errs := make(chan error, len(addrs))
	for _, addr := range addrs {
		l, err := newListener(addr, s.cfg)
		if err != nil {
			s.Close()
			return fmt.Errorf("%w: %s", ErrResource, err)
		}
		s.mu.Lock()
		s.listeners = append(s.listeners, l)
		s.mu.Unlock()
		s.cfg.Log.Info().Str("address", addr).Int("workers", s.cfg.Workers).Msg("listening")
		go func(l *Listener) { errs <- l.run(ctx) }(l)
	}

	err = <-errs
	s.Close()
	return err
}

// Close tears down every bound socket.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.listeners {
		l.close()
	}
}

// bindAddresses resolves Config.Address into the concrete set of
// addresses to bind. A specific address binds exactly that one socket.
// An empty address binds one listener per non-loopback IPv4 interface
// address and no redundant 0.0.0.0 catch-all — the per-interface choice
// spec.md §9 asks implementers to make and document (see DESIGN.md).
func bindAddresses(address string) ([]string, error) {
	if address != "" {
		return []string{address}, nil
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}
	var out []string
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			v4 := ipNet.IP.To4()
			if v4 == nil || v4.IsLoopback() {
				continue
			}
			out = append(out, v4.String())
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no usable IPv4 interface addresses found")
	}
	return out, nil
}

// Listener owns one bound socket, its own frame queue, and a fixed-size
// worker pool (spec.md §4.H).
type Listener struct {
	addr    string
	conn    *conn
	queue   *queue.Queue
	workers int
	handler *Handler
	store   store.Store
	testing bool
	log     zerolog.Logger

	fatal chan error
	wg    sync.WaitGroup
}

func newListener(addr string, cfg Config) (*Listener, error) {
	c, err := listen(addr, ServerPort)
	if err != nil {
		return nil, err
	}
	return &Listener{
		addr:    addr,
		conn:    c,
		queue:   queue.New(cfg.Workers * 4),
		workers: cfg.Workers,
		handler: &Handler{
			Grammar:  cfg.Grammar,
			Resolver: cfg.Resolver,
			Reverse:  cfg.Reverse,
			ServerIP: net.ParseIP(addr).To4(),
			Log:      cfg.Log,
		},
		store:   cfg.Store,
		testing: cfg.Testing,
		log:     cfg.Log.With().Str("listener", addr).Logger(),
		fatal:   make(chan error, cfg.Workers),
	}, nil
}

func (l *Listener) close() { l.conn.Close() }

// run starts the worker pool and the receive loop, and blocks until
// either a worker reports a fatal session-setup error or the receive
// loop exits (ctx canceled). On exit it posts one sentinel per worker
// and joins them, per spec.md §4.E/§4.H.
func (l *Listener) run(ctx context.Context) error {
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}

	go func() {
		<-ctx.Done()
		l.conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		l.receiveLoop(ctx)
		close(done)
	}()

	var err error
	select {
	case err = <-l.fatal:
	case <-done:
		err = ctx.Err()
	}

	for i := 0; i < l.workers; i++ {
		l.queue.Queue(nil)
	}
	l.wg.Wait()
	return err
}

// receiveLoop is spec.md §4.H's loop: alloc, recv, queue, with recv
// errors swallowed. Listeners have no shutdown signal of their own
// (spec.md §5's "Cancellation" note); ctx cancellation here only serves
// tests, by closing the socket out from under a blocked ReadFrom.
func (l *Listener) receiveLoop(ctx context.Context) {
	buf := make([]byte, wire.FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := l.conn.readFrame(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Debug().Err(err).Msg("recv error, continuing")
			continue
		}
		p := l.queue.Alloc()
		if err := p.Unmarshal(buf[:n]); err != nil {
			l.log.Debug().Err(err).Msg("malformed frame, dropping")
			l.queue.Free(p)
			continue
		}
		l.queue.Queue(p)
	}
}

// worker is one pool member (spec.md §4.G): it owns one store session
// for its whole lifetime, draining the queue until the sentinel.
func (l *Listener) worker(id int) {
	defer l.wg.Done()
	sess, err := l.store.NewSession(context.Background())
	if err != nil {
		l.fatal <- fmt.Errorf("worker %d: starting store session: %w", id, err)
		return
	}
	defer sess.Close()

	for {
		p := l.queue.Wait()
		if p == nil {
			return
		}
		l.processOne(sess, p)
	}
}

// processOne is the per-frame top level of spec.md §4.G's failure
// semantics: the frame is always freed, and Handler.Process never lets
// an error escape.
func (l *Listener) processOne(sess store.Session, p *wire.Frame) {
	defer l.queue.Free(p)
	ctx := context.Background()

	if l.testing {
		fmt.Print(wire.Format(p, l.handler.Grammar, l.handler.Reverse))
		return
	}

	reply, send := l.handler.Process(ctx, sess, p)
	if !send {
		return
	}
	if err := l.conn.sendBroadcast(reply.Marshal()); err != nil {
		l.log.Warn().Err(err).Msg("failed to send reply")
	}
}
