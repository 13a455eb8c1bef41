package bao

import (
	"github.com/stregato/bao-go/internal/bindings"
)

// EcEncrypt encrypts plain for the owner of publicID.
func (l *Library) EcEncrypt(publicID string, plain []byte) ([]byte, error) {
	return l.withData(plain, func(d bindings.Arg) *Result {
		return l.invoke("bao_security_ecEncrypt", bindings.String(publicID), d)
	})
}

// EcDecrypt decrypts data encrypted by EcEncrypt for privateID.
func (l *Library) EcDecrypt(privateID string, cipher []byte) ([]byte, error) {
	return l.withData(cipher, func(d bindings.Arg) *Result {
		return l.invoke("bao_security_ecDecrypt", bindings.String(privateID), d)
	})
}

// AesEncrypt seals plain with AES-GCM under key and nonce.
func (l *Library) AesEncrypt(key string, nonce, plain []byte) ([]byte, error) {
	return l.withData2(nonce, plain, func(n, d bindings.Arg) *Result {
		return l.invoke("bao_security_aesEncrypt", bindings.String(key), n, d)
	})
}

// AesDecrypt opens data sealed by AesEncrypt.
func (l *Library) AesDecrypt(key string, nonce, cipher []byte) ([]byte, error) {
	return l.withData2(nonce, cipher, func(n, d bindings.Arg) *Result {
		return l.invoke("bao_security_aesDecrypt", bindings.String(key), n, d)
	})
}

// withData runs call with an owned copy of b that is released, zeroed, as
// soon as the call returns. The payload is returned raw.
func (l *Library) withData(b []byte, call func(bindings.Arg) *Result) ([]byte, error) {
	d := NewData(b)
	defer d.Release()
	a, err := d.arg()
	if err != nil {
		return nil, err
	}
	return call(a).Raw()
}

func (l *Library) withData2(b1, b2 []byte, call func(a1, a2 bindings.Arg) *Result) ([]byte, error) {
	d1, d2 := NewData(b1), NewData(b2)
	defer d1.Release()
	defer d2.Release()
	a1, err := d1.arg()
	if err != nil {
		return nil, err
	}
	a2, err := d2.arg()
	if err != nil {
		return nil, err
	}
	return call(a1, a2).Raw()
}
