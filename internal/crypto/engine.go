// Package crypto implements field-level encryption. Each classified field
// gets one of three treatments: deterministic (equality-searchable), range
// (interval-searchable) or random (opaque). The key never leaves the key
// vault client; this package only borrows handles per call.
package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/jwalitptl/phi-api/internal/keyvault"
	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/pkg/errors"
	"github.com/jwalitptl/phi-api/pkg/metrics"
)

// Engine encrypts and decrypts classified field values. Stateless per call;
// safe for concurrent use.
type Engine struct {
	vault   *keyvault.Client
	schema  Schema
	altName string
	metrics *metrics.Metrics
}

// NewEngine wires the engine to a key vault client. altName is the DEK
// alt-name used for every classified field: deterministic equality search
// requires one key across all records, so the key is per deployment, not
// per record.
func NewEngine(vault *keyvault.Client, schema Schema, altName string, m *metrics.Metrics) *Engine {
	return &Engine{vault: vault, schema: schema, altName: altName, metrics: m}
}

// Schema returns the engine's field classification table.
func (e *Engine) Schema() Schema {
	return e.schema
}

// Encrypt seals one field value according to its declared classification.
func (e *Engine) Encrypt(ctx context.Context, et model.EntityType, field string, value any) (*EncryptedValue, error) {
	spec, ok := e.schema.Lookup(et, field)
	if !ok {
		return nil, errors.EncryptionFailure(field)
	}
	start := time.Now()
	defer e.observe("encrypt", start)

	plaintext, err := serializeValue(spec, value)
	if err != nil {
		e.countError("serialize")
		return nil, errors.EncryptionFailure(field)
	}

	handle, err := e.vault.GetOrCreateDataKey(ctx, e.altName)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(handle.Key)
	if err != nil {
		e.countError("cipher")
		return nil, errors.EncryptionFailure(field)
	}

	var nonce []byte
	switch spec.Class {
	case ClassDeterministic:
		// Synthetic nonce derived from (key, field, plaintext): equal
		// inputs give byte-identical ciphertext, which is what makes
		// equality search on ciphertext work.
		nonce = deriveNonce(handle.Key, field, plaintext, gcm.NonceSize())
	case ClassRange, ClassRandom:
		nonce = make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			e.countError("nonce")
			return nil, errors.EncryptionFailure(field)
		}
	default:
		return nil, errors.EncryptionFailure(field)
	}

	blob := &EncryptedValue{
		Class:   spec.Class,
		Payload: gcm.Seal(nonce, nonce, plaintext, []byte(field)),
	}
	if spec.Class == ClassRange {
		prefix, err := rangePrefix(spec, value)
		if err != nil {
			e.countError("range_encode")
			return nil, errors.EncryptionFailure(field)
		}
		blob.RangePrefix = prefix
	}

	e.countOp(spec.Class, "encrypt")
	return blob, nil
}

// Decrypt opens one field blob back into its plaintext value. A stored
// algorithm tag that disagrees with the configured classification is a
// SchemaMismatch; malformed ciphertext is a DecryptionFailure, never a
// silent nil.
func (e *Engine) Decrypt(ctx context.Context, et model.EntityType, field string, blob *EncryptedValue) (any, error) {
	spec, ok := e.schema.Lookup(et, field)
	if !ok {
		return nil, errors.DecryptionFailure(field)
	}
	if blob.Class != spec.Class {
		e.countError("schema_mismatch")
		return nil, errors.SchemaMismatch(field, string(blob.Class), string(spec.Class))
	}
	start := time.Now()
	defer e.observe("decrypt", start)

	handle, err := e.vault.GetOrCreateDataKey(ctx, e.altName)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(handle.Key)
	if err != nil {
		e.countError("cipher")
		return nil, errors.DecryptionFailure(field)
	}

	if len(blob.Payload) < gcm.NonceSize() {
		e.countError("truncated")
		return nil, errors.DecryptionFailure(field)
	}
	nonce, sealed := blob.Payload[:gcm.NonceSize()], blob.Payload[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, []byte(field))
	if err != nil {
		e.countError("open")
		return nil, errors.DecryptionFailure(field)
	}

	value, err := deserializeValue(spec, plaintext)
	if err != nil {
		e.countError("deserialize")
		return nil, errors.DecryptionFailure(field)
	}

	e.countOp(spec.Class, "decrypt")
	return value, nil
}

// RangeBound encodes a probe value into the order-comparable prefix form,
// for building interval queries without encrypting a full blob.
func (e *Engine) RangeBound(et model.EntityType, field string, value any) (string, error) {
	spec, ok := e.schema.Lookup(et, field)
	if !ok || spec.Class != ClassRange {
		return "", errors.EncryptionFailure(field)
	}
	return rangePrefix(spec, value)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func deriveNonce(key []byte, field string, plaintext []byte, size int) []byte {
	info := make([]byte, 0, len(field)+1+len(plaintext))
	info = append(info, []byte(field)...)
	info = append(info, 0)
	info = append(info, plaintext...)
	kdf := hkdf.New(sha256.New, key, nil, info)
	nonce := make([]byte, size)
	io.ReadFull(kdf, nonce)
	return nonce
}

func (e *Engine) countOp(class Class, op string) {
	if e.metrics != nil {
		e.metrics.CryptoOps.WithLabelValues(string(class), op).Inc()
	}
}

func (e *Engine) countError(kind string) {
	if e.metrics != nil {
		e.metrics.CryptoErrors.WithLabelValues(kind).Inc()
	}
}

func (e *Engine) observe(op string, start time.Time) {
	if e.metrics != nil {
		e.metrics.CryptoLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
