//go:build cgo && !windows

package bindings

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include "cfunc.h"

static void* bao_dlopen(const char* path) {
	return dlopen(path, RTLD_NOW | RTLD_LOCAL);
}

static const char* bao_dlerror(void) {
	return dlerror();
}

static void* bao_dlsym(void* h, const char* name, const char** err) {
	dlerror();
	void* p = dlsym(h, name);
	const char* e = dlerror();
	if (err) *err = e;
	return e ? NULL : p;
}

static int bao_dlclose(void* h) {
	return dlclose(h);
}

typedef void (*free_fn)(void*);
static void bao_call_free(void* f, void* p) { ((free_fn)f)(p); }

typedef Result (*fn_)(void);
typedef Result (*fn_s)(char*);
typedef Result (*fn_i)(int);
typedef Result (*fn_d)(Data);
typedef Result (*fn_sd)(char*, Data);
typedef Result (*fn_sdd)(char*, Data, Data);
typedef Result (*fn_sss)(char*, char*, char*);
typedef Result (*fn_sslls)(char*, char*, long long, long long, char*);
typedef Result (*fn_sssll)(char*, char*, char*, long long, long long);
typedef Result (*fn_l)(long long);
typedef Result (*fn_li)(long long, int);
typedef Result (*fn_ls)(long long, char*);
typedef Result (*fn_lis)(long long, int, char*);
typedef Result (*fn_lls)(long long, long long, char*);
typedef Result (*fn_lsl)(long long, char*, long long);
typedef Result (*fn_lss)(long long, char*, char*);
typedef Result (*fn_liss)(long long, int, char*, char*);
typedef Result (*fn_lssi)(long long, char*, char*, int);
typedef Result (*fn_lssl)(long long, char*, char*, long long);
typedef Result (*fn_lsll)(long long, char*, long long, long long);
typedef Result (*fn_lslli)(long long, char*, long long, long long, int);
typedef Result (*fn_lssdl)(long long, char*, char*, Data, long long);
typedef Result (*fn_lssis)(long long, char*, char*, int, char*);

static Result call_(void* f) { return ((fn_)f)(); }
static Result call_s(void* f, char* a) { return ((fn_s)f)(a); }
static Result call_i(void* f, int a) { return ((fn_i)f)(a); }
static Result call_d(void* f, Data a) { return ((fn_d)f)(a); }
static Result call_sd(void* f, char* a, Data b) { return ((fn_sd)f)(a, b); }
static Result call_sdd(void* f, char* a, Data b, Data c) { return ((fn_sdd)f)(a, b, c); }
static Result call_sss(void* f, char* a, char* b, char* c) { return ((fn_sss)f)(a, b, c); }
static Result call_sslls(void* f, char* a, char* b, long long c, long long d, char* e) { return ((fn_sslls)f)(a, b, c, d, e); }
static Result call_sssll(void* f, char* a, char* b, char* c, long long d, long long e) { return ((fn_sssll)f)(a, b, c, d, e); }
static Result call_l(void* f, long long a) { return ((fn_l)f)(a); }
static Result call_li(void* f, long long a, int b) { return ((fn_li)f)(a, b); }
static Result call_ls(void* f, long long a, char* b) { return ((fn_ls)f)(a, b); }
static Result call_lis(void* f, long long a, int b, char* c) { return ((fn_lis)f)(a, b, c); }
static Result call_lls(void* f, long long a, long long b, char* c) { return ((fn_lls)f)(a, b, c); }
static Result call_lsl(void* f, long long a, char* b, long long c) { return ((fn_lsl)f)(a, b, c); }
static Result call_lss(void* f, long long a, char* b, char* c) { return ((fn_lss)f)(a, b, c); }
static Result call_liss(void* f, long long a, int b, char* c, char* d) { return ((fn_liss)f)(a, b, c, d); }
static Result call_lssi(void* f, long long a, char* b, char* c, int d) { return ((fn_lssi)f)(a, b, c, d); }
static Result call_lssl(void* f, long long a, char* b, char* c, long long d) { return ((fn_lssl)f)(a, b, c, d); }
static Result call_lsll(void* f, long long a, char* b, long long c, long long d) { return ((fn_lsll)f)(a, b, c, d); }
static Result call_lslli(void* f, long long a, char* b, long long c, long long d, int e) { return ((fn_lslli)f)(a, b, c, d, e); }
static Result call_lssdl(void* f, long long a, char* b, char* c, Data d, long long e) { return ((fn_lssdl)f)(a, b, c, d, e); }
static Result call_lssis(void* f, long long a, char* b, char* c, int d, char* e) { return ((fn_lssis)f)(a, b, c, d, e); }
*/
import "C"

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// Library is a dlopen'ed bao shared object. Symbols are resolved lazily and
// cached; calls are safe for concurrent use.
type Library struct {
	mu   sync.RWMutex
	h    unsafe.Pointer
	free unsafe.Pointer
	syms map[string]unsafe.Pointer
}

// Open loads the library at cfg.Path and resolves the native free.
func Open(cfg Config) (*Library, error) {
	path := cfg.Path
	if path == "" {
		path = DefaultLibrary
	}
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))

	h := C.bao_dlopen(cs)
	if h == nil {
		return nil, fmt.Errorf("%w %q: %s", ErrLoad, path, dlerr())
	}
	l := &Library{h: h, syms: map[string]unsafe.Pointer{}}
	f, err := l.lookup("free")
	if err != nil {
		C.bao_dlclose(h)
		return nil, err
	}
	l.free = f
	return l, nil
}

func dlerr() string {
	if e := C.bao_dlerror(); e != nil {
		return C.GoString(e)
	}
	return "unknown dlerror"
}

func (l *Library) lookup(symbol string) (unsafe.Pointer, error) {
	l.mu.RLock()
	p, ok := l.syms[symbol]
	h := l.h
	l.mu.RUnlock()
	if ok {
		return p, nil
	}
	if h == nil {
		return nil, ErrClosed
	}

	cs := C.CString(symbol)
	defer C.free(unsafe.Pointer(cs))
	var cerr *C.char
	p = C.bao_dlsym(h, cs, &cerr)
	if p == nil {
		detail := "nil symbol"
		if cerr != nil {
			detail = C.GoString(cerr)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrSymbolNotFound, symbol, detail)
	}

	l.mu.Lock()
	l.syms[symbol] = p
	l.mu.Unlock()
	return p, nil
}

// Call invokes symbol with args. The trampoline is chosen by the argument
// kinds; strings are copied to C memory and released after the call, Data
// buffers are pinned for its duration.
func (l *Library) Call(symbol string, args ...Arg) (Envelope, error) {
	fn, err := l.lookup(symbol)
	if err != nil {
		return Envelope{}, err
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()
	var cstrs []*C.char
	defer func() {
		for _, cs := range cstrs {
			C.free(unsafe.Pointer(cs))
		}
	}()

	s := func(i int) *C.char {
		if args[i].Null {
			return nil
		}
		cs := C.CString(args[i].Str)
		cstrs = append(cstrs, cs)
		return cs
	}
	n := func(i int) C.int { return C.int(args[i].Int) }
	ll := func(i int) C.longlong { return C.longlong(args[i].Int) }
	d := func(i int) C.Data {
		if args[i].Ptr != nil {
			pinner.Pin(args[i].Ptr)
		}
		return C.Data{ptr: args[i].Ptr, len: C.size_t(args[i].Len)}
	}

	var r C.Result
	switch sig := Signature(args); sig {
	case "":
		r = C.call_(fn)
	case "s":
		r = C.call_s(fn, s(0))
	case "i":
		r = C.call_i(fn, n(0))
	case "d":
		r = C.call_d(fn, d(0))
	case "sd":
		r = C.call_sd(fn, s(0), d(1))
	case "sdd":
		r = C.call_sdd(fn, s(0), d(1), d(2))
	case "sss":
		r = C.call_sss(fn, s(0), s(1), s(2))
	case "sslls":
		r = C.call_sslls(fn, s(0), s(1), ll(2), ll(3), s(4))
	case "sssll":
		r = C.call_sssll(fn, s(0), s(1), s(2), ll(3), ll(4))
	case "l":
		r = C.call_l(fn, ll(0))
	case "li":
		r = C.call_li(fn, ll(0), n(1))
	case "ls":
		r = C.call_ls(fn, ll(0), s(1))
	case "lis":
		r = C.call_lis(fn, ll(0), n(1), s(2))
	case "lls":
		r = C.call_lls(fn, ll(0), ll(1), s(2))
	case "lsl":
		r = C.call_lsl(fn, ll(0), s(1), ll(2))
	case "lss":
		r = C.call_lss(fn, ll(0), s(1), s(2))
	case "liss":
		r = C.call_liss(fn, ll(0), n(1), s(2), s(3))
	case "lssi":
		r = C.call_lssi(fn, ll(0), s(1), s(2), n(3))
	case "lssl":
		r = C.call_lssl(fn, ll(0), s(1), s(2), ll(3))
	case "lsll":
		r = C.call_lsll(fn, ll(0), s(1), ll(2), ll(3))
	case "lslli":
		r = C.call_lslli(fn, ll(0), s(1), ll(2), ll(3), n(4))
	case "lssdl":
		r = C.call_lssdl(fn, ll(0), s(1), s(2), d(3), ll(4))
	case "lssis":
		r = C.call_lssis(fn, ll(0), s(1), s(2), n(3), s(4))
	default:
		return Envelope{}, fmt.Errorf("%w: %s(%s)", ErrSignature, symbol, sig)
	}

	return Envelope{
		Ptr: r.ptr,
		Len: uintptr(r.len),
		Hnd: Handle(r.hnd),
		Err: unsafe.Pointer(r.err),
	}, nil
}

// Free releases native memory through the library's own allocator.
func (l *Library) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.free == nil {
		return
	}
	C.bao_call_free(l.free, p)
}

// Close unloads the library. Subsequent calls report ErrClosed.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.h == nil {
		return nil
	}
	rc := C.bao_dlclose(l.h)
	l.h = nil
	l.free = nil
	l.syms = map[string]unsafe.Pointer{}
	if rc != 0 {
		return fmt.Errorf("dlclose: %s", dlerr())
	}
	return nil
}

// ResultSize and DataSize report the C layouts seen by cgo.
func ResultSize() uintptr { return unsafe.Sizeof(C.Result{}) }
func DataSize() uintptr   { return unsafe.Sizeof(C.Data{}) }
