package sftpd

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// workerCount is the size of the parallel read/write pool. Everything
// else funnels through one sequential command worker so that, e.g., two
// RENAMEs racing on the same path never need their own locking protocol
// (spec.md §7).
const workerCount = 8

// job is one decoded, not-yet-handled client request, tagged with the
// monotonically increasing order in which it arrived.
type job struct {
	orderID uint32
	id      uint32
	op      opcode
	body    []byte
}

// outFrame is a fully encoded response frame waiting for its turn to be
// written, tagged with the orderID of the job that produced it.
type outFrame struct {
	orderID uint32
	frame   []byte
}

// dispatcher reproduces the ordered-response guarantee of spec.md §5:
// replies may complete out of order across the worker pool, but they
// reach the wire in the same order their requests arrived. Grounded on
// the teacher's packetManager, restructured around this module's job/
// outFrame types and an errgroup-managed worker pool instead of a bare
// WaitGroup, so a fatal transport error cancels every in-flight worker.
type dispatcher struct {
	sess *session
	conn *conn

	counter uint32

	requests  chan job
	responses chan outFrame
	fini      chan struct{}

	incoming []job
	outgoing []outFrame

	working sync.WaitGroup
}

func newDispatcher(sess *session, c *conn) *dispatcher {
	return &dispatcher{
		sess:      sess,
		conn:      c,
		requests:  make(chan job, workerCount),
		responses: make(chan outFrame, workerCount),
		fini:      make(chan struct{}),
	}
}

func (d *dispatcher) nextOrderID() uint32 {
	d.counter++
	return d.counter
}

// run reads frames until the connection closes or ctx is canceled,
// fanning read/write requests out across the worker pool and everything
// else through one sequential worker, while a controller goroutine
// reassembles responses into arrival order before writing them.
func (d *dispatcher) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	rw := make(chan job, workerCount)
	cmd := make(chan job)

	for i := 0; i < workerCount; i++ {
		g.Go(func() error { return d.workerLoop(ctx, rw) })
	}
	g.Go(func() error { return d.workerLoop(ctx, cmd) })

	g.Go(func() error {
		d.controller(ctx)
		return nil
	})

	g.Go(func() error {
		defer close(rw)
		defer close(cmd)
		for {
			frame, err := readFrame(d.conn)
			if err != nil {
				return err
			}
			dec := newDecoder(frame)
			opByte, err := dec.byte()
			if err != nil {
				continue // malformed frame with no opcode: nothing to reply to
			}
			op := opcode(opByte)

			var id uint32
			if op != opInit {
				if id, err = dec.uint32(); err != nil {
					continue
				}
			}

			if op == opClose {
				// Let in-flight reads/writes (on this or any handle) drain
				// before the close itself is counted, matching the
				// teacher's packet-manager ordering for fxpClosePkt. This
				// must happen before working.Add(1)/requests<- for the
				// close job itself: that job's own Done() only fires once
				// a worker processes it off cmd, which can't happen until
				// this Wait returns, so waiting after enqueueing it would
				// deadlock on every CLOSE.
				d.working.Wait()
			}

			j := job{orderID: d.nextOrderID(), id: id, op: op, body: dec.remaining()}

			d.working.Add(1)
			d.requests <- j

			if op == opRead || op == opWrite {
				rw <- j
				continue
			}
			cmd <- j
		}
	})

	err := g.Wait()
	close(d.fini)
	d.working.Wait()
	return err
}

func (d *dispatcher) workerLoop(ctx context.Context, in <-chan job) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j, ok := <-in:
			if !ok {
				return nil
			}
			frame := d.sess.handle(j)
			d.responses <- outFrame{orderID: j.orderID, frame: frame}
			d.working.Done()
		}
	}
}

// controller matches completed responses against the order requests
// arrived in and flushes everything that has become eligible, in order.
func (d *dispatcher) controller(ctx context.Context) {
	for {
		select {
		case j := <-d.requests:
			d.incoming = append(d.incoming, j)
			sort.Slice(d.incoming, func(i, k int) bool { return d.incoming[i].orderID < d.incoming[k].orderID })
		case f := <-d.responses:
			d.outgoing = append(d.outgoing, f)
			sort.Slice(d.outgoing, func(i, k int) bool { return d.outgoing[i].orderID < d.outgoing[k].orderID })
		case <-d.fini:
			return
		case <-ctx.Done():
			return
		}
		d.flushReady()
	}
}

func (d *dispatcher) flushReady() {
	for len(d.incoming) > 0 && len(d.outgoing) > 0 {
		in, out := d.incoming[0], d.outgoing[0]
		if in.orderID != out.orderID {
			return
		}
		if len(out.frame) > 0 {
			if err := d.conn.writeFrame(out.frame); err != nil {
				debug("dispatch: write error: %v", err)
			}
		}
		d.incoming = d.incoming[1:]
		d.outgoing = d.outgoing[1:]
	}
}
