// Package signer signs Tolar transactions locally.
//
// The node defines the canonical encoding of a transaction: the signer asks it for the
// base64 protobuf form, hashes the decoded bytes with Keccak-256 and signs the hash with
// a secp256k1 key. Nothing is broadcast here.
package signer

import (
	"context"
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gabapcia/tolclient/internal/chain"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var (
	// ErrInvalidPrivateKey is returned when a private key cannot be parsed.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrEncoding is returned when the canonical encoding of a transaction cannot be obtained.
	ErrEncoding = errors.New("transaction encoding failed")
)

// Encoder returns the canonical, base64 encoded protobuf form of a transaction.
type Encoder interface {
	TransactionProtobuf(ctx context.Context, tx chain.UnsignedTransaction) (string, error)
}

// Credentials hold the private key transactions are signed with.
type Credentials struct {
	key *ecdsa.PrivateKey
}

// CredentialsFromHex parses a hex encoded secp256k1 private key, with or without 0x prefix.
func CredentialsFromHex(s string) (Credentials, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	return Credentials{key: key}, nil
}

// PublicKey returns the uncompressed public key without its format byte: X || Y, 64 bytes.
func (c Credentials) PublicKey() []byte {
	return crypto.FromECDSAPub(&c.key.PublicKey)[1:]
}

// SignerID is the public key as a hex number. Like any number it carries no leading zeros.
func (c Credentials) SignerID() string {
	id := strings.TrimLeft(hex.EncodeToString(c.PublicKey()), "0")
	if id == "" {
		return "0"
	}
	return id
}

// Transaction is an unsigned transaction together with its canonical encoding, fetched at
// most once per instance.
type Transaction struct {
	body chain.UnsignedTransaction

	mu       sync.Mutex
	encoding string
}

// NewTransaction wraps body for signing.
func NewTransaction(body chain.UnsignedTransaction) *Transaction {
	return &Transaction{body: body}
}

// Body returns the wrapped transaction.
func (t *Transaction) Body() chain.UnsignedTransaction {
	return t.body
}

// encode returns the cached encoding, asking enc for it on first use. Failures are not cached.
func (t *Transaction) encode(ctx context.Context, enc Encoder) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.encoding != "" {
		return t.encoding, nil
	}

	encoding, err := enc.TransactionProtobuf(ctx, t.body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	t.encoding = encoding
	return encoding, nil
}

// Signer produces signature envelopes.
type Signer struct {
	encoder Encoder
}

// New creates a Signer that obtains canonical encodings from encoder.
func New(encoder Encoder) *Signer {
	return &Signer{encoder: encoder}
}

// Sign hashes the canonical encoding of tx and signs it with creds. The signature is R || S || V
// with V in {0, 1}. Signing the same transaction with the same credentials always yields the
// same envelope.
func (s *Signer) Sign(ctx context.Context, tx *Transaction, creds Credentials) (chain.SignatureEnvelope, error) {
	encoding, err := tx.encode(ctx, s.encoder)
	if err != nil {
		return chain.SignatureEnvelope{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(encoding)
	if err != nil {
		return chain.SignatureEnvelope{}, fmt.Errorf("%w: decode protobuf: %w", ErrEncoding, err)
	}

	hash := keccak256(raw)

	signature, err := crypto.Sign(hash, creds.key)
	if err != nil {
		return chain.SignatureEnvelope{}, fmt.Errorf("sign transaction: %w", err)
	}

	return chain.SignatureEnvelope{
		Hash:      hex.EncodeToString(hash),
		Signature: hex.EncodeToString(signature),
		SignerID:  creds.SignerID(),
	}, nil
}

// SignTransaction signs tx and packages it for broadcast.
func (s *Signer) SignTransaction(ctx context.Context, tx *Transaction, creds Credentials) (chain.SignedTransaction, error) {
	envelope, err := s.Sign(ctx, tx, creds)
	if err != nil {
		return chain.SignedTransaction{}, err
	}

	return chain.SignedTransaction{
		Body:    tx.Body(),
		SigData: envelope,
	}, nil
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
