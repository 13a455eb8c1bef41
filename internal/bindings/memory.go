package bindings

import "unsafe"

// CopyBytes copies n bytes starting at p into Go memory. A nil p yields nil.
// The source is left untouched; releasing it remains the caller's job.
func CopyBytes(p unsafe.Pointer, n uintptr) []byte {
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	if n > 0 {
		copy(out, unsafe.Slice((*byte)(p), n))
	}
	return out
}

// GoString reads the nul-terminated string at p. A nil p yields "".
func GoString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	var n uintptr
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(p), n))
}
