// Conn is the Go translation of cl_conn (original_source/cl_conn.c):
// a state object bundling one net.Conn, a read buffer, a write buffer,
// an idle timer, and a table of named control handlers. See spec.md
// §4.3 for the full contract.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package transport

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/teris-io/shortid"

	"github.com/NVIDIA/xltop/internal/xconf"
	"github.com/NVIDIA/xltop/internal/xerr"
	"github.com/NVIDIA/xltop/internal/xlog"
)

// DefaultCtlChar is the control-frame marker used unless Ops.CtlChar
// is set, matching CL_CONN_CTL_CHAR's default in the original source.
const DefaultCtlChar = '%'

// CtlData is what a control handler receives: the parsed control name,
// the 64-bit transaction id, and whatever tail followed it.
type CtlData struct {
	Name string
	TID  uint64
	Args string
}

// CtlHandler handles one control frame and returns the Kind to report
// back to the peer (OK on success; Ended/Moved suppress the automatic
// reply per spec.md §4.3).
type CtlHandler func(c *Conn, cd *CtlData) *xerr.Error

// Ctl pairs a control name with its handler. Ops.Ctl must be sorted by
// Name; Init() sorts defensively and, in debug builds, asserts it was
// already sorted (the cl_conn_init TODO: "If DEBUG set then check that
// ctls are sorted").
type Ctl struct {
	Name    string
	Handler CtlHandler
}

// MsgHandler handles a non-control frame (one not starting with the
// control character).
type MsgHandler func(c *Conn, msg []byte) *xerr.Error

// EndHandler, if installed, takes over all further lifecycle for a
// connection that is ending (spec.md §4.3's "End policy").
type EndHandler func(c *Conn, err *xerr.Error)

// ReplyHandler consumes a reply frame for a control name this side
// itself originated (e.g. an agent's own %sample pushes being acked by
// the aggregator on the same bidirectional connection).
type ReplyHandler func(c *Conn, name string, tid uint64, kind xerr.Kind, msg string)

// Ops configures a Conn at Init time, mirroring struct cl_conn_ops.
type Ops struct {
	RDBufSize int
	WRBufSize int
	Timeout   time.Duration
	CtlChar   byte
	Ctl       []Ctl
	MsgCB     MsgHandler
	EndCB     EndHandler

	// ReplyNames lists control names this Conn itself sends (and thus
	// expects replies, not requests, to arrive under) — e.g. an
	// outbound agent connection pushing "%sample": spec.md's uniform
	// "unknown name -> NO_CTL, always reply" dispatch rule is written
	// for a connection that only ever RECEIVES requests. A connection
	// that also originates requests over the same bidirectional control
	// channel needs a way to recognize its own replies arriving back
	// and consume them without re-entering the reply-unless-ENDED/MOVED
	// loop (which would otherwise volley forever, each side treating
	// the other's reply as a malformed new request). Names in this set
	// are routed to ReplyCB instead of NoCtl, and no reply is written.
	ReplyNames map[string]bool
	ReplyCB    ReplyHandler
}

func (o *Ops) ctlChar() byte {
	if o.CtlChar == 0 {
		return DefaultCtlChar
	}
	return o.CtlChar
}

// Conn is a single non-blocking, line-framed, command-multiplexed
// connection. All registry/business-logic state it touches must only
// be mutated from inside a closure running on its Reactor; see
// transport/reactor.go's doc comment for the single invariant that
// makes this safe without locks. The write buffer (wr) is the one
// exception: wrMu guards the raw byte region shared between the
// reactor goroutine (which appends via Writef) and the per-connection
// writer goroutine (which drains it onto the socket) — see
// SPEC_FULL.md §5.3.
type Conn struct {
	ops     *Ops
	reactor *Reactor

	name   string
	sessID string

	nc net.Conn
	rd Buf

	wrMu     sync.Mutex
	wr       Buf
	wrSignal chan struct{}

	idle  *time.Timer
	rdEOF bool

	ending    bool
	stopped   bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	gone      bool // Destroy has run
}

// Init allocates the read/write buffers and installs ops. It does not
// bind a descriptor; call Set then Start to begin serving.
func (c *Conn) Init(ops *Ops) {
	c.rd.Init(ops.RDBufSize)
	c.wr.Init(ops.WRBufSize)
	c.wrSignal = make(chan struct{}, 1)

	sorted := make([]Ctl, len(ops.Ctl))
	copy(sorted, ops.Ctl)
	if xconf.Debug && !sort.SliceIsSorted(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name }) {
		xlog.Warnf("cl_conn ctl table for %q was not pre-sorted", c.name)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	c.ops = &Ops{
		RDBufSize: ops.RDBufSize, WRBufSize: ops.WRBufSize, Timeout: ops.Timeout,
		CtlChar: ops.CtlChar, Ctl: sorted, MsgCB: ops.MsgCB, EndCB: ops.EndCB,
		ReplyNames: ops.ReplyNames, ReplyCB: ops.ReplyCB,
	}
}

// Set binds a net.Conn and a display name, the Go translation of
// cl_conn_set (with the `events` argument dropped, per the original's
// own TODO: "Remove events argument from cl_conn_set()").
func (c *Conn) Set(nc net.Conn, name string) {
	if xlog.V(2) {
		xlog.Infof("cl_conn SET fd, name %q", name)
	}
	c.nc = nc
	c.name = name
	id, err := shortid.Generate()
	if err != nil {
		id = name
	}
	c.sessID = id
}

func (c *Conn) Name() string { return c.name }

// Start registers the connection with reactor, arms the idle timer,
// launches the reader/writer goroutines, and fires the initial "up"
// event (cl_conn_start).
func (c *Conn) Start(reactor *Reactor) {
	c.reactor = reactor
	c.rdEOF = false
	c.ending, c.stopped, c.gone = false, false, false
	c.stopCh = make(chan struct{})
	c.stopOnce = sync.Once{}

	c.idle = time.AfterFunc(c.ops.Timeout, func() {
		reactor.Post(func() { c.end(xerr.Newf(timedOutKind, "timed out")) })
	})

	go c.readLoop()
	go c.writeLoop()

	c.up(nil)
}

// Stop de-registers I/O and timer interest without closing the
// descriptor (cl_conn_stop). It unblocks the reader goroutine's
// in-flight Read with a deadline (Go has no user-space equivalent of
// interrupting a single-threaded non-blocking read(2), so an expired
// deadline is the idiomatic stand-in) and wakes the writer goroutine
// via stopCh; both notice c.stopped and exit without posting further
// events.
func (c *Conn) Stop() {
	if c.idle != nil {
		c.idle.Stop()
	}
	c.stopped = true
	if c.nc != nil {
		_ = c.nc.SetReadDeadline(time.Now())
	}
	c.stopOnce.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
		}
	})
}

// Close stops, then closes the descriptor (cl_conn_close).
func (c *Conn) Close() {
	c.Stop()
	if c.nc != nil {
		_ = c.nc.Close()
	}
}

// Destroy releases buffers. It asserts (logs loudly rather than
// panicking, since this is a server that should not crash on a
// programmer error) that the connection was already stopped.
func (c *Conn) Destroy() {
	if !c.stopped {
		xlog.Errorf("destroying cl_conn %q that was never stopped", c.name)
	}
	if c.gone {
		xlog.Warnf("double destroy of cl_conn %q", c.name)
		return
	}
	c.gone = true
	if c.nc != nil {
		_ = c.nc.Close()
		c.nc = nil
	}
	c.rd.Destroy()
	c.wrMu.Lock()
	c.wr.Destroy()
	c.wrMu.Unlock()
}

// Move transfers src's buffers, descriptor, and name to dst, re-arms
// dst, and leaves src quiesced with no descriptor (cl_conn_move). A
// synthetic readable+writable event is posted on dst so any data
// buffered on src before the move is processed on dst's next reactor
// tick (spec.md Testable Property 5).
func Move(dst, src *Conn) error {
	dst.Close()
	src.Stop()

	if err := dst.rd.CopyFrom(&src.rd); err != nil {
		return err
	}
	src.wrMu.Lock()
	err := dst.wr.CopyFrom(&src.wr)
	src.wrMu.Unlock()
	if err != nil {
		return err
	}

	dst.Set(src.nc, src.name)
	src.nc = nil

	dst.Start(src.reactor)
	src.reactor.Post(func() { dst.up(nil) })

	return nil
}

// Writef formats into the write buffer (pulling up first) and signals
// the writer goroutine. It never ends the connection on its own error
// path (cl_conn_writef's "don't pass err to cl_conn_up so cc doesn't
// get destroyed"): an overflow is returned to the caller as
// xerr.ErrNoBufSpace, spec.md Testable Property 10.
func (c *Conn) Writef(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	c.wrMu.Lock()
	_, err := c.wr.Write([]byte(msg))
	c.wrMu.Unlock()
	if err != nil {
		return err
	}
	c.signalWriter()
	return nil
}

func (c *Conn) signalWriter() {
	select {
	case c.wrSignal <- struct{}{}:
	default:
	}
}

// readLoop is the per-connection reader goroutine: it blocks on
// net.Conn.Read and hands each chunk to the reactor, never touching
// c.rd directly (c.rd is reactor-exclusive state).
func (c *Conn) readLoop() {
	buf := make([]byte, 4096)
	for !c.stopped {
		n, err := c.nc.Read(buf)

		// Stop() may have set a read deadline to unblock this call (as
		// happens mid-Move): treat that wakeup as silent, not as a read
		// error to report on a connection that is being handed off.
		if c.stopped {
			return
		}

		var chunk []byte
		if n > 0 {
			chunk = append([]byte(nil), buf[:n]...)
		}
		eof := errors.Is(err, net.ErrClosed) || isEOF(err)
		var rerr error
		if err != nil && !eof {
			rerr = err
		}
		done := make(chan struct{})
		c.reactor.Post(func() {
			c.onChunk(chunk, eof, rerr)
			close(done)
		})
		<-done
		if err != nil {
			return
		}
	}
}

func isEOF(err error) bool {
	return err != nil && err.Error() == "EOF"
}

// writeLoop is the per-connection writer goroutine: it drains c.wr
// onto the socket whenever signaled, under wrMu.
func (c *Conn) writeLoop() {
	for {
		select {
		case _, ok := <-c.wrSignal:
			if !ok {
				return
			}
		case <-c.stopCh:
			return
		}
		for {
			c.wrMu.Lock()
			data := c.wr.Unread()
			c.wrMu.Unlock()
			if len(data) == 0 {
				break
			}
			n, err := c.nc.Write(data)
			c.wrMu.Lock()
			c.wr.Advance(n)
			empty := c.wr.IsEmpty()
			c.wrMu.Unlock()
			if err != nil {
				done := make(chan struct{})
				c.reactor.Post(func() { c.end(xerr.Wrap(err, "write")); close(done) })
				<-done
				return
			}
			if empty {
				break
			}
		}
		if c.stopped {
			return
		}
	}
}

// onChunk runs on the reactor goroutine: append the freshly read bytes
// into c.rd, then dispatch every complete frame, the Go translation of
// cl_conn_rd.
func (c *Conn) onChunk(chunk []byte, eof bool, rerr error) {
	if c.gone {
		return
	}
	if len(chunk) > 0 {
		if _, err := c.rd.Write(chunk); err != nil {
			c.up(xerr.Wrap(err, "read buffer overflow"))
			return
		}
	}
	if eof {
		c.rdEOF = true
	}

	var dispatchErr *xerr.Error
	for dispatchErr == nil {
		line, ok := c.rd.GetMsg()
		if !ok {
			break
		}
		dispatchErr = c.dispatch(line)
	}

	if rerr != nil {
		c.up(xerr.Wrap(rerr, "read"))
		return
	}
	c.up(dispatchErr)
}

// dispatch routes one frame: control frames (first byte == ctl char)
// go through ctlMsg; everything else goes to ops.MsgCB, or is silently
// discarded if none is installed (cl_conn_rd's message loop).
func (c *Conn) dispatch(line []byte) *xerr.Error {
	if len(line) > 0 && line[0] == c.ops.ctlChar() {
		return c.ctlMsg(string(line[1:]))
	}
	if c.ops.MsgCB != nil {
		return c.ops.MsgCB(c, line)
	}
	return nil
}

// ctlMsg parses "<NAME> <TID-hex> [args…]" and dispatches by binary
// search on the sorted control table (cl_conn_ctl_msg).
func (c *Conn) ctlMsg(msg string) *xerr.Error {
	name, rest, ok := strings.Cut(msg, " ")
	if !ok {
		c.reply("", 0, xerr.New(xerr.NrArgs))
		return nil
	}
	tidStr, args, _ := strings.Cut(rest, " ")

	i := sort.Search(len(c.ops.Ctl), func(i int) bool { return c.ops.Ctl[i].Name >= name })
	if i >= len(c.ops.Ctl) || c.ops.Ctl[i].Name != name {
		tid, _ := strconv.ParseUint(tidStr, 16, 64)
		if c.ops.ReplyNames[name] {
			c.consumeReply(name, tid, args)
			return nil
		}
		if xlog.V(3) {
			xlog.Infof("cl_conn %q: no handler for ctl %q", c.name, name)
		}
		c.reply(name, tid, xerr.New(xerr.NoCtl))
		return nil
	}

	tid, _ := strconv.ParseUint(tidStr, 16, 64)
	cd := &CtlData{Name: name, TID: tid, Args: args}
	cerr := c.ops.Ctl[i].Handler(c, cd)
	if cerr == nil {
		cerr = xerr.New(xerr.OK)
	}

	if cerr.Kind != xerr.Ended && cerr.Kind != xerr.Moved {
		c.reply(name, tid, cerr)
	}

	if cerr.Kind == xerr.Ended || cerr.Kind == xerr.Moved {
		return cerr
	}
	if cerr.Kind != xerr.OK {
		return nil // protocol error: reported to peer, connection continues (spec.md §7)
	}
	return nil
}

// reply writes "<ctl_char><name> <tid-hex> <code> <message>\n" — the
// reply-frame format from spec.md §4.3.
func (c *Conn) reply(name string, tid uint64, e *xerr.Error) {
	if name == "" {
		name = "NONE"
	}
	if err := c.Writef("%c%s %x %d %s\n", c.ops.ctlChar(), name, tid, int(e.Kind), e.Error()); err != nil {
		xlog.Warnf("cl_conn %q: reply dropped: %v", c.name, err)
	}
}

// consumeReply parses "<code> <message>" out of a reply frame's tail and
// hands it to ops.ReplyCB, if installed, without writing anything back
// (ReplyNames' whole point is to stop the volley here).
func (c *Conn) consumeReply(name string, tid uint64, args string) {
	if c.ops.ReplyCB == nil {
		return
	}
	codeStr, msg, _ := strings.Cut(args, " ")
	code, _ := strconv.Atoi(codeStr)
	c.ops.ReplyCB(c, name, tid, xerr.Kind(code), msg)
}

// up recomputes interest and re-arms the idle timer after every
// successful I/O callback (cl_conn_up). If err is non-nil, or if
// neither reading nor writing is possible any longer, the connection
// ends.
func (c *Conn) up(err *xerr.Error) {
	if c.gone {
		return
	}
	if err != nil {
		c.end(err)
		return
	}

	c.wrMu.Lock()
	wantWrite := !c.wr.IsEmpty()
	c.wrMu.Unlock()
	wantRead := !c.rdEOF

	if !wantRead && !wantWrite {
		c.end(nil)
		return
	}

	if c.idle != nil {
		c.idle.Reset(c.ops.Timeout)
	}
	if wantWrite {
		c.signalWriter()
	}
}

// end implements cl_conn_end's lifecycle handoff: if EndCB is
// installed it takes over; otherwise a best-effort error frame is
// written, then the connection stops and destroys itself.
func (c *Conn) end(err *xerr.Error) {
	if c.ending || c.gone {
		return
	}
	c.ending = true

	kind := xerr.OK
	if err != nil {
		kind = err.Kind
	}
	if kind == xerr.Ended || kind == xerr.Moved {
		kind = xerr.OK
	}

	if c.ops.EndCB != nil {
		c.ops.EndCB(c, err)
		return
	}

	if c.nc != nil && kind != xerr.OK {
		msg := fmt.Sprintf("%cerror %d %s\n", c.ops.ctlChar(), int(kind), kind.String())
		_, _ = c.nc.Write([]byte(msg))
	}

	c.Stop()
	c.Destroy()
}

// timedOutKind is a process-local system-error code (outside the
// closed xerr.Kind enum) standing in for ETIMEDOUT, rendered via
// Kind.String()'s generic fallback.
const timedOutKind = xerr.Kind(1000)
