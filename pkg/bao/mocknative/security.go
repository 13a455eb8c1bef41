package mocknative

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"golang.org/x/crypto/hkdf"
)

var securityEntries = map[string]entry{
	"bao_security_newPrivateID":    {"", newPrivateID},
	"bao_security_publicID":        {"s", publicID},
	"bao_security_newKeyPair":      {"", newKeyPair},
	"bao_security_decodePublicID":  {"s", decodePublicID},
	"bao_security_decodePrivateID": {"s", decodePrivateID},
	"bao_security_ecEncrypt":       {"sd", ecEncrypt},
	"bao_security_ecDecrypt":       {"sd", ecDecrypt},
	"bao_security_aesEncrypt":      {"sdd", aesEncrypt},
	"bao_security_aesDecrypt":      {"sdd", aesDecrypt},
}

var b64 = base64.URLEncoding

type identity struct {
	crypt *btcec.PrivateKey
	seed  []byte
}

func generateIdentity() (identity, error) {
	crypt, err := btcec.NewPrivateKey()
	if err != nil {
		return identity{}, err
	}
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return identity{}, err
	}
	return identity{crypt: crypt, seed: seed}, nil
}

func (id identity) private() string {
	return b64.EncodeToString(append(id.crypt.Serialize(), id.seed...))
}

func (id identity) public() string {
	sign := ed25519.NewKeyFromSeed(id.seed).Public().(ed25519.PublicKey)
	return b64.EncodeToString(append(id.crypt.PubKey().SerializeCompressed(), sign...))
}

func parsePrivate(s string) (identity, error) {
	raw, err := b64.DecodeString(s)
	if err != nil {
		return identity{}, errorf(ParseError, err, "cannot decode base64")
	}
	if len(raw) != btcec.PrivKeyBytesLen+ed25519.SeedSize {
		return identity{}, errorf(ParseError, nil, "invalid private ID with length %d", len(raw))
	}
	crypt, _ := btcec.PrivKeyFromBytes(raw[:btcec.PrivKeyBytesLen])
	return identity{crypt: crypt, seed: raw[btcec.PrivKeyBytesLen:]}, nil
}

func parsePublic(s string) (*btcec.PublicKey, []byte, error) {
	raw, err := b64.DecodeString(s)
	if err != nil {
		return nil, nil, errorf(ParseError, err, "cannot decode base64")
	}
	if len(raw) != btcec.PubKeyBytesLenCompressed+ed25519.PublicKeySize {
		return nil, nil, errorf(ParseError, nil, "invalid public ID with length %d", len(raw))
	}
	pub, err := btcec.ParsePubKey(raw[:btcec.PubKeyBytesLenCompressed])
	if err != nil {
		return nil, nil, errorf(ParseError, err, "invalid secp256k1 public key")
	}
	return pub, raw[btcec.PubKeyBytesLenCompressed:], nil
}

func newPrivateID(*Native, argv) reply {
	id, err := generateIdentity()
	if err != nil {
		return fail(errorf(GenericError, err, "cannot generate private ID"))
	}
	return value(id.private())
}

func publicID(_ *Native, a argv) reply {
	id, err := parsePrivate(a.s(0))
	if err != nil {
		return fail(errorf(ParseError, err, "cannot derive public ID from provided private ID"))
	}
	return value(id.public())
}

func newKeyPair(*Native, argv) reply {
	id, err := generateIdentity()
	if err != nil {
		return fail(errorf(GenericError, err, "cannot generate new key pair"))
	}
	return value(map[string]string{"publicID": id.public(), "privateID": id.private()})
}

func decodePublicID(_ *Native, a argv) reply {
	pub, sign, err := parsePublic(a.s(0))
	if err != nil {
		return fail(errorf(ParseError, err, "cannot decode ID"))
	}
	return value(map[string]string{
		"cryptKey": b64.EncodeToString(pub.SerializeCompressed()),
		"signKey":  b64.EncodeToString(sign),
	})
}

func decodePrivateID(_ *Native, a argv) reply {
	id, err := parsePrivate(a.s(0))
	if err != nil {
		return fail(errorf(ParseError, err, "cannot decode ID"))
	}
	return value(map[string]string{
		"cryptKey": b64.EncodeToString(id.crypt.Serialize()),
		"signKey":  b64.EncodeToString(id.seed),
	})
}

// ECIES over secp256k1: ephemeral compressed key || GCM nonce || sealed data.
// The AES key is HKDF-SHA256 of the ECDH x coordinate, salted with the
// ephemeral key.
func ecKey(shared, ephemeral []byte) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, ephemeral, []byte("bao-ecies")), key); err != nil {
		return nil, err
	}
	return key, nil
}

func gcm(key []byte, nonceSize int) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if nonceSize == 0 {
		return cipher.NewGCM(block)
	}
	return cipher.NewGCMWithNonceSize(block, nonceSize)
}

func ecEncrypt(_ *Native, a argv) reply {
	pub, _, err := parsePublic(a.s(0))
	if err != nil {
		return fail(errorf(ParseError, err, "cannot decode keys"))
	}
	eph, err := btcec.NewPrivateKey()
	if err != nil {
		return fail(errorf(GenericError, err, "cannot generate ephemeral key"))
	}
	ephPub := eph.PubKey().SerializeCompressed()
	key, err := ecKey(btcec.GenerateSharedSecret(eph, pub), ephPub)
	if err != nil {
		return fail(errorf(GenericError, err, "cannot derive key"))
	}
	aead, err := gcm(key, 0)
	if err != nil {
		return fail(errorf(GenericError, err, "cannot encrypt with secp256k1"))
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fail(errorf(GenericError, err, "cannot generate nonce"))
	}
	out := append(append(ephPub, nonce...), aead.Seal(nil, nonce, a.d(1), nil)...)
	return rawBytes(out)
}

func ecDecrypt(_ *Native, a argv) reply {
	id, err := parsePrivate(a.s(0))
	if err != nil {
		return fail(errorf(ParseError, err, "cannot decode keys"))
	}
	data := a.d(1)
	const ephLen = btcec.PubKeyBytesLenCompressed
	if len(data) < ephLen {
		return fail(errorf(EncodeError, nil, "ciphertext too short"))
	}
	eph, err := btcec.ParsePubKey(data[:ephLen])
	if err != nil {
		return fail(errorf(EncodeError, err, "invalid ephemeral key"))
	}
	key, err := ecKey(btcec.GenerateSharedSecret(id.crypt, eph), data[:ephLen])
	if err != nil {
		return fail(errorf(GenericError, err, "cannot derive key"))
	}
	aead, err := gcm(key, 0)
	if err != nil {
		return fail(errorf(GenericError, err, "cannot decrypt"))
	}
	rest := data[ephLen:]
	if len(rest) < aead.NonceSize() {
		return fail(errorf(EncodeError, nil, "ciphertext too short"))
	}
	plain, err := aead.Open(nil, rest[:aead.NonceSize()], rest[aead.NonceSize():], nil)
	if err != nil {
		return fail(errorf(AuthError, err, "cannot decrypt ciphertext with provided private ID"))
	}
	return rawBytes(plain)
}

func aesEncrypt(_ *Native, a argv) reply {
	nonce := a.d(1)
	aead, err := gcm([]byte(a.s(0)), len(nonce))
	if err != nil {
		return fail(errorf(GenericError, err, "cannot encrypt plaintext with provided key (len %d) and nonce (%d bytes)", len(a.s(0)), len(nonce)))
	}
	return rawBytes(aead.Seal(nil, nonce, a.d(2), nil))
}

func aesDecrypt(_ *Native, a argv) reply {
	nonce := a.d(1)
	aead, err := gcm([]byte(a.s(0)), len(nonce))
	if err != nil {
		return fail(errorf(GenericError, err, "cannot decrypt ciphertext with provided key (len %d) and nonce (%d bytes)", len(a.s(0)), len(nonce)))
	}
	plain, err := aead.Open(nil, nonce, a.d(2), nil)
	if err != nil {
		return fail(errorf(AuthError, err, "cannot decrypt ciphertext"))
	}
	return rawBytes(plain)
}
