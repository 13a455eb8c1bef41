package mocknative

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	"github.com/stregato/bao-go/internal/bindings"
)

// Reply is a scripted envelope returned instead of running an entry point.
type Reply struct {
	// Payload is copied into a fresh allocation. Nil leaves the payload
	// pointer null; an empty non-nil slice yields a non-null zero-length one.
	Payload []byte
	// Err is copied into a nul-terminated allocation when HasErr is set,
	// even when empty.
	Err    string
	HasErr bool
	Handle bindings.Handle
}

// Native is an in-process bao backend. It implements bindings.Native and
// accounts for every allocation it hands out, so tests can check that each
// buffer is freed exactly once.
type Native struct {
	mu      sync.Mutex
	closed  bool
	entries map[string]entry

	allocs      map[unsafe.Pointer][]byte
	freed       map[unsafe.Pointer]struct{}
	frees       int
	doubleFrees int
	foreign     int

	next    bindings.Handle
	handles map[bindings.Handle]*slot
	opened  map[string]int
	closes  map[string]int

	calls  map[string]int
	script map[string][]Reply
	recent []string

	logLevel string
	httpLog  string

	vaults map[string]*vaultState
}

type slot struct {
	kind string
	v    any
}

type entry struct {
	sig string
	fn  func(*Native, argv) reply
}

// New returns an empty backend with every entry point registered.
func New() *Native {
	n := &Native{
		allocs:   map[unsafe.Pointer][]byte{},
		freed:    map[unsafe.Pointer]struct{}{},
		next:     1,
		handles:  map[bindings.Handle]*slot{},
		opened:   map[string]int{},
		closes:   map[string]int{},
		calls:    map[string]int{},
		script:   map[string][]Reply{},
		logLevel: "info",
		vaults:   map[string]*vaultState{},
	}
	n.entries = map[string]entry{}
	for _, table := range []map[string]entry{coreEntries, securityEntries, dbEntries, storeEntries, vaultEntries, replicaEntries, mailboxEntries} {
		for name, e := range table {
			n.entries[name] = e
		}
	}
	return n
}

// Symbols lists the registered entry points.
func (n *Native) Symbols() []string {
	out := make([]string, 0, len(n.entries))
	for name := range n.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Script queues replies for symbol. Queued replies are returned in order,
// before the entry point is run again.
func (n *Native) Script(symbol string, replies ...Reply) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.script[symbol] = append(n.script[symbol], replies...)
}

// Call runs symbol with args.
func (n *Native) Call(symbol string, args ...bindings.Arg) (bindings.Envelope, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return bindings.Envelope{}, bindings.ErrClosed
	}
	n.calls[symbol]++
	n.trace("%s(%s)", symbol, bindings.Signature(args))

	if q := n.script[symbol]; len(q) > 0 {
		n.script[symbol] = q[1:]
		return n.scripted(q[0]), nil
	}

	e, ok := n.entries[symbol]
	if !ok {
		return bindings.Envelope{}, fmt.Errorf("%w: %s", bindings.ErrSymbolNotFound, symbol)
	}
	if sig := bindings.Signature(args); sig != e.sig {
		return bindings.Envelope{}, fmt.Errorf("%w: %s(%s), want (%s)", bindings.ErrSignature, symbol, sig, e.sig)
	}
	return n.envelope(e.fn(n, argv(args))), nil
}

// Close releases every resource still registered. Further calls fail.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	var first error
	for h, s := range n.handles {
		if c, ok := s.v.(interface{ close() error }); ok {
			if err := c.close(); err != nil && first == nil {
				first = err
			}
		}
		delete(n.handles, h)
	}
	return first
}

func (n *Native) trace(format string, args ...any) {
	const keep = 1000
	n.recent = append(n.recent, fmt.Sprintf(format, args...))
	if len(n.recent) > keep {
		n.recent = n.recent[len(n.recent)-keep:]
	}
}

func (n *Native) scripted(r Reply) bindings.Envelope {
	env := bindings.Envelope{Hnd: r.Handle}
	if r.Payload != nil {
		env.Ptr = n.alloc(r.Payload)
		env.Len = uintptr(len(r.Payload))
	}
	if r.HasErr {
		env.Err = n.alloc([]byte(r.Err))
	}
	return env
}

func (n *Native) envelope(r reply) bindings.Envelope {
	env := bindings.Envelope{Hnd: r.hnd}
	if r.err != nil {
		b, err := json.Marshal(asError(r.err))
		if err != nil {
			b = []byte(r.err.Error())
		}
		env.Err = n.alloc(b)
		return env
	}
	payload := r.raw
	if !r.isRaw && r.v != nil {
		b, err := json.Marshal(r.v)
		if err != nil {
			env.Err = n.alloc([]byte(err.Error()))
			return env
		}
		payload = b
	}
	if payload != nil {
		env.Ptr = n.alloc(payload)
		env.Len = uintptr(len(payload))
	}
	return env
}

// alloc copies b into a buffer owned by n. One trailing nul byte keeps error
// strings terminated and empty payloads non-null.
func (n *Native) alloc(b []byte) unsafe.Pointer {
	buf := make([]byte, len(b)+1)
	copy(buf, b)
	p := unsafe.Pointer(&buf[0])
	n.allocs[p] = buf
	delete(n.freed, p)
	return p
}

// Free releases a buffer handed out in an envelope.
func (n *Native) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	buf, ok := n.allocs[p]
	switch {
	case ok:
		clear(buf)
		delete(n.allocs, p)
		n.freed[p] = struct{}{}
		n.frees++
	default:
		if _, was := n.freed[p]; was {
			n.doubleFrees++
		} else {
			n.foreign++
		}
	}
}

// Frees is the number of successful frees.
func (n *Native) Frees() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frees
}

// Live is the number of buffers handed out and not yet freed.
func (n *Native) Live() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.allocs)
}

// DoubleFrees counts frees of an already freed buffer.
func (n *Native) DoubleFrees() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.doubleFrees
}

// ForeignFrees counts frees of pointers n never allocated.
func (n *Native) ForeignFrees() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.foreign
}

// Calls is the number of times symbol was invoked.
func (n *Native) Calls(symbol string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[symbol]
}

// Opened and Closed count handles issued and released per kind ("db",
// "rows", "store", "vault", "replica").
func (n *Native) Opened(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.opened[kind]
}

func (n *Native) Closed(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closes[kind]
}

// LiveHandles is the number of handles not yet closed.
func (n *Native) LiveHandles() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.handles)
}

func (n *Native) register(kind string, v any) bindings.Handle {
	h := n.next
	n.next++
	n.handles[h] = &slot{kind: kind, v: v}
	n.opened[kind]++
	return h
}

func (n *Native) unregister(h bindings.Handle, kind string) (any, error) {
	s, ok := n.handles[h]
	if !ok || s.kind != kind {
		return nil, errorf(GenericError, nil, "invalid %s handle %d", kind, h)
	}
	delete(n.handles, h)
	n.closes[kind]++
	return s.v, nil
}

func lookup[T any](n *Native, h bindings.Handle, kind string) (T, error) {
	var zero T
	s, ok := n.handles[h]
	if !ok || s.kind != kind {
		return zero, errorf(GenericError, nil, "invalid %s handle %d", kind, h)
	}
	v, ok := s.v.(T)
	if !ok {
		return zero, errorf(GenericError, nil, "handle %d is not a %s", h, kind)
	}
	return v, nil
}

// argv decodes positional arguments; the signature has been checked already.
type argv []bindings.Arg

func (a argv) s(i int) string { return a[i].Str }

func (a argv) null(i int) bool { return a[i].Null }

func (a argv) i(i int) int { return int(a[i].Int) }

func (a argv) l(i int) int64 { return a[i].Int }

func (a argv) h(i int) bindings.Handle { return bindings.Handle(a[i].Int) }

func (a argv) d(i int) []byte {
	return bindings.CopyBytes(a[i].Ptr, a[i].Len)
}

// reply is what an entry point produces before it is laid out in memory.
type reply struct {
	v     any
	raw   []byte
	isRaw bool
	hnd   bindings.Handle
	err   error
}

func none() reply                           { return reply{} }
func value(v any) reply                     { return reply{v: v} }
func rawBytes(b []byte) reply               { return reply{raw: b, isRaw: true} }
func fail(err error) reply                  { return reply{err: err} }
func opened(h bindings.Handle, v any) reply { return reply{v: v, hnd: h} }

func result(v any, err error) reply {
	if err != nil {
		return fail(err)
	}
	return value(v)
}
