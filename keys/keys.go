// Copyright 2024 The ledger Authors
// This file is part of the ledger library.
//
// The ledger library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ledger library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ledger library. If not, see <http://www.gnu.org/licenses/>.

// Package keys implements the single-keypair-per-node signing model:
// ECDSA over secp256k1 with SHA-256, with keys serialized as PEM
// (SubjectPublicKeyInfo for public keys, unencrypted PKCS#8 for
// private keys) so that any language's crypto library can load them.
// The ASN.1 structures are assembled here because crypto/x509 only
// knows the NIST named curves and rejects secp256k1.
package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/hex"
	"encoding/pem"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
)

// Curve returns the secp256k1 curve, wired through btcec so it
// implements the standard library's elliptic.Curve interface and can
// be used with crypto/ecdsa directly.
func Curve() *btcec.KoblitzCurve {
	return btcec.S256()
}

var (
	oidECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// ecAlgorithm is the AlgorithmIdentifier for id-ecPublicKey with a
// named-curve parameter.
type ecAlgorithm struct {
	Algorithm  asn1.ObjectIdentifier
	NamedCurve asn1.ObjectIdentifier
}

// subjectPublicKeyInfo is the SPKI outer structure of RFC 5280.
type subjectPublicKeyInfo struct {
	Algorithm ecAlgorithm
	PublicKey asn1.BitString
}

// pkcs8 is the unencrypted OneAsymmetricKey structure of RFC 5958;
// PrivateKey holds a DER-encoded SEC1 ECPrivateKey.
type pkcs8 struct {
	Version    int
	Algorithm  ecAlgorithm
	PrivateKey []byte
}

// ecPrivateKey is the SEC1 ECPrivateKey structure. The curve
// parameters are carried by the PKCS#8 AlgorithmIdentifier, so the
// optional [0] field is omitted.
type ecPrivateKey struct {
	Version    int
	PrivateKey []byte
	PublicKey  asn1.BitString `asn1:"optional,explicit,tag:1"`
}

// Keypair is an immutable secp256k1 ECDSA keypair. Once loaded or
// generated it is never mutated; the node's peer list and keypair are
// its two pieces of genuinely immutable shared state.
type Keypair struct {
	Private *ecdsa.PrivateKey
	Public  *ecdsa.PublicKey
}

// Generate creates a fresh keypair.
func Generate() (*Keypair, error) {
	priv, err := ecdsa.GenerateKey(Curve(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate secp256k1 key")
	}
	return &Keypair{Private: priv, Public: &priv.PublicKey}, nil
}

// PublicPEM renders the public key as a SubjectPublicKeyInfo PEM
// block — the text form transactions carry in their sender and
// receiver fields.
func (k *Keypair) PublicPEM() (string, error) {
	return PublicKeyToPEM(k.Public)
}

// PrivatePEM renders the private key as an unencrypted PKCS#8 PEM
// block, the form persisted in the node's .env file.
func (k *Keypair) PrivatePEM() (string, error) {
	point := elliptic.Marshal(Curve(), k.Public.X, k.Public.Y)
	d := make([]byte, 32)
	k.Private.D.FillBytes(d)
	inner, err := asn1.Marshal(ecPrivateKey{
		Version:    1,
		PrivateKey: d,
		PublicKey:  asn1.BitString{Bytes: point, BitLength: 8 * len(point)},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal sec1 private key")
	}
	der, err := asn1.Marshal(pkcs8{
		Version:    0,
		Algorithm:  ecAlgorithm{Algorithm: oidECPublicKey, NamedCurve: oidSecp256k1},
		PrivateKey: inner,
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal pkcs8 private key")
	}
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// PublicKeyToPEM renders a secp256k1 public key as
// SubjectPublicKeyInfo PEM with the uncompressed point encoding.
func PublicKeyToPEM(pub *ecdsa.PublicKey) (string, error) {
	point := elliptic.Marshal(Curve(), pub.X, pub.Y)
	der, err := asn1.Marshal(subjectPublicKeyInfo{
		Algorithm: ecAlgorithm{Algorithm: oidECPublicKey, NamedCurve: oidSecp256k1},
		PublicKey: asn1.BitString{Bytes: point, BitLength: 8 * len(point)},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal spki public key")
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// PublicKeyFromPEM parses a SubjectPublicKeyInfo PEM block back into
// an ECDSA public key.
func PublicKeyFromPEM(text string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil {
		return nil, errors.New("no PEM block found in public key text")
	}
	var spki subjectPublicKeyInfo
	if rest, err := asn1.Unmarshal(block.Bytes, &spki); err != nil || len(rest) != 0 {
		return nil, errors.New("malformed spki public key")
	}
	if !spki.Algorithm.Algorithm.Equal(oidECPublicKey) || !spki.Algorithm.NamedCurve.Equal(oidSecp256k1) {
		return nil, errors.New("public key is not secp256k1")
	}
	x, y := elliptic.Unmarshal(Curve(), spki.PublicKey.Bytes)
	if x == nil {
		return nil, errors.New("public key point is not on secp256k1")
	}
	return &ecdsa.PublicKey{Curve: Curve(), X: x, Y: y}, nil
}

// PrivateKeyFromPEM parses an unencrypted PKCS#8 PEM block back into
// an ECDSA private key.
func PrivateKeyFromPEM(text string) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(text))
	if block == nil {
		return nil, errors.New("no PEM block found in private key text")
	}
	var outer pkcs8
	if rest, err := asn1.Unmarshal(block.Bytes, &outer); err != nil || len(rest) != 0 {
		return nil, errors.New("malformed pkcs8 private key")
	}
	if !outer.Algorithm.Algorithm.Equal(oidECPublicKey) || !outer.Algorithm.NamedCurve.Equal(oidSecp256k1) {
		return nil, errors.New("private key is not secp256k1")
	}
	var inner ecPrivateKey
	if _, err := asn1.Unmarshal(outer.PrivateKey, &inner); err != nil {
		return nil, errors.Wrap(err, "parse sec1 private key")
	}
	d := new(big.Int).SetBytes(inner.PrivateKey)
	if d.Sign() <= 0 || d.Cmp(Curve().Params().N) >= 0 {
		return nil, errors.New("private scalar out of range")
	}
	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = Curve()
	priv.X, priv.Y = Curve().ScalarBaseMult(d.Bytes())
	return priv, nil
}

// signatureHalfLen is the byte width of each of the two big-endian
// integers (r, s) making up a signature, sized for secp256k1's 256-bit
// field.
const signatureHalfLen = 32

// Sign signs the SHA-256 digest of payload with the private key and
// renders the signature as hex text, the form a Transaction's
// signature field carries. The hex decodes to two fixed 32-byte
// big-endian integers r||s.
func Sign(priv *ecdsa.PrivateKey, payload []byte) (string, error) {
	digest := sha256.Sum256(payload)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return "", errors.Wrap(err, "sign payload")
	}
	buf := make([]byte, 2*signatureHalfLen)
	r.FillBytes(buf[:signatureHalfLen])
	s.FillBytes(buf[signatureHalfLen:])
	return hex.EncodeToString(buf), nil
}

// Verify checks a hex-encoded r||s signature against payload and the
// given public key.
func Verify(pub *ecdsa.PublicKey, payload []byte, signatureHex string) bool {
	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil || len(sigBytes) != 2*signatureHalfLen {
		return false
	}
	r := new(big.Int).SetBytes(sigBytes[:signatureHalfLen])
	s := new(big.Int).SetBytes(sigBytes[signatureHalfLen:])
	digest := sha256.Sum256(payload)
	return ecdsa.Verify(pub, digest[:], r, s)
}
