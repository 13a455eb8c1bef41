package bao

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/stregato/bao-go/internal/bindings"
)

// Sizes of the two keys packed in an identity.
const (
	CryptPublicKeySize  = btcec.PubKeyBytesLenCompressed
	CryptPrivateKeySize = btcec.PrivKeyBytesLen
	PublicIDSize        = CryptPublicKeySize + ed25519.PublicKeySize
	PrivateIDSize       = CryptPrivateKeySize + ed25519.SeedSize
)

// ErrInvalidID reports an identity that does not decode to a valid key pair.
var ErrInvalidID = errors.New("bao: invalid identity")

// NewPrivateID asks the library for a fresh private identity.
func (l *Library) NewPrivateID() (string, error) {
	return Value[string](l.invoke("bao_security_newPrivateID"))
}

// PublicID derives the public identity of privateID.
func (l *Library) PublicID(privateID string) (string, error) {
	return Value[string](l.invoke("bao_security_publicID", bindings.String(privateID)))
}

// NewKeyPair generates a private identity together with its public identity.
func (l *Library) NewKeyPair() (KeyPair, error) {
	return decodeStruct[KeyPair](l.invoke("bao_security_newKeyPair"))
}

// DecodePublicID splits a public identity into its keys. The secp256k1 key is
// checked to be a point on the curve.
func (l *Library) DecodePublicID(publicID string) (Keys, error) {
	keys, err := l.decodeKeys("bao_security_decodePublicID", publicID)
	if err != nil {
		return Keys{}, err
	}
	if _, err := btcec.ParsePubKey(keys.CryptKey); err != nil {
		return Keys{}, fmt.Errorf("%w: crypt key: %v", ErrInvalidID, err)
	}
	if len(keys.SignKey) != ed25519.PublicKeySize {
		return Keys{}, fmt.Errorf("%w: sign key length %d", ErrInvalidID, len(keys.SignKey))
	}
	return keys, nil
}

// DecodePrivateID splits a private identity into its keys: the secp256k1
// scalar and the ed25519 seed.
func (l *Library) DecodePrivateID(privateID string) (Keys, error) {
	keys, err := l.decodeKeys("bao_security_decodePrivateID", privateID)
	if err != nil {
		return Keys{}, err
	}
	if len(keys.CryptKey) != CryptPrivateKeySize {
		return Keys{}, fmt.Errorf("%w: crypt key length %d", ErrInvalidID, len(keys.CryptKey))
	}
	if len(keys.SignKey) != ed25519.SeedSize {
		return Keys{}, fmt.Errorf("%w: sign key length %d", ErrInvalidID, len(keys.SignKey))
	}
	return keys, nil
}

func (l *Library) decodeKeys(symbol, id string) (Keys, error) {
	w, err := decodeStruct[wireKeys](l.invoke(symbol, bindings.String(id)))
	if err != nil {
		return Keys{}, err
	}
	crypt, err := base64.URLEncoding.DecodeString(w.CryptKey)
	if err != nil {
		return Keys{}, fmt.Errorf("%w: %s: crypt key: %v", ErrDecode, symbol, err)
	}
	sign, err := base64.URLEncoding.DecodeString(w.SignKey)
	if err != nil {
		return Keys{}, fmt.Errorf("%w: %s: sign key: %v", ErrDecode, symbol, err)
	}
	return Keys{CryptKey: crypt, SignKey: sign}, nil
}

// ParsePublicID decodes a public identity locally, without a native call.
func ParsePublicID(publicID string) (*btcec.PublicKey, ed25519.PublicKey, error) {
	raw, err := base64.URLEncoding.DecodeString(publicID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if len(raw) != PublicIDSize {
		return nil, nil, fmt.Errorf("%w: length %d", ErrInvalidID, len(raw))
	}
	pub, err := btcec.ParsePubKey(raw[:CryptPublicKeySize])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: crypt key: %v", ErrInvalidID, err)
	}
	return pub, ed25519.PublicKey(raw[CryptPublicKeySize:]), nil
}

// ParsePrivateID decodes a private identity locally. The caller owns the
// returned keys and should zero them when done.
func ParsePrivateID(privateID string) (*btcec.PrivateKey, ed25519.PrivateKey, error) {
	raw, err := base64.URLEncoding.DecodeString(privateID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	defer zeroize(raw)
	if len(raw) != PrivateIDSize {
		return nil, nil, fmt.Errorf("%w: length %d", ErrInvalidID, len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw[:CryptPrivateKeySize])
	return priv, ed25519.NewKeyFromSeed(raw[CryptPrivateKeySize:]), nil
}

// FormatPublicID packs the two public keys into a public identity.
func FormatPublicID(crypt *btcec.PublicKey, sign ed25519.PublicKey) (string, error) {
	if crypt == nil || len(sign) != ed25519.PublicKeySize {
		return "", ErrInvalidID
	}
	raw := append(crypt.SerializeCompressed(), sign...)
	return base64.URLEncoding.EncodeToString(raw), nil
}
