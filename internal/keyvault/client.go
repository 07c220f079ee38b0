// Package keyvault manages data-encryption keys. It is the only component
// that touches raw key material: DEKs are generated here, wrapped under a
// master key before they reach the vault store, and unwrapped on read.
package keyvault

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/crypto/hkdf"

	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/pkg/circuitbreaker"
	"github.com/jwalitptl/phi-api/pkg/errors"
	"github.com/jwalitptl/phi-api/pkg/logger"
	"github.com/jwalitptl/phi-api/pkg/metrics"
)

const dekSize = 32 // AES-256

// KeyHandle is an unwrapped data-encryption key resolved by alt-name.
type KeyHandle struct {
	ID      uuid.UUID
	AltName string
	Key     []byte
}

type Config struct {
	// MasterKey seals DEKs at rest. Must be 32 bytes and not all zeros.
	MasterKey []byte
	// CacheTTL bounds how long an unwrapped handle stays in memory.
	CacheTTL time.Duration
	// Breaker settings for vault store round trips.
	BreakerMaxFailures int
	BreakerTimeout     time.Duration
}

// Client resolves alt-names to data-encryption keys, creating them on
// first use. Lookup is idempotent: the same alt-name always yields the
// same key, or decryption of previously stored data silently breaks.
type Client struct {
	store   repository.VaultStore
	breaker *circuitbreaker.CircuitBreaker
	cache   *cache.Cache
	wrapGCM cipher.AEAD
	log     *logger.Logger
	metrics *metrics.Metrics
}

func NewClient(store repository.VaultStore, cfg Config, log *logger.Logger, m *metrics.Metrics) (*Client, error) {
	if len(cfg.MasterKey) != dekSize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", dekSize, len(cfg.MasterKey))
	}
	if bytes.Equal(cfg.MasterKey, make([]byte, dekSize)) {
		return nil, fmt.Errorf("master key appears to be uninitialized (all zeros)")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}

	// The wrapping key is derived rather than the raw master key, leaving
	// the master secret free for other derivations.
	wrapKey := make([]byte, dekSize)
	kdf := hkdf.New(sha256.New, cfg.MasterKey, nil, []byte("phi-api/dek-wrapping"))
	if _, err := io.ReadFull(kdf, wrapKey); err != nil {
		return nil, fmt.Errorf("failed to derive wrapping key: %w", err)
	}
	block, err := aes.NewCipher(wrapKey)
	if err != nil {
		return nil, fmt.Errorf("failed to init wrapping cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init wrapping cipher: %w", err)
	}

	return &Client{
		store: store,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "keyvault",
			MaxFailures: cfg.BreakerMaxFailures,
			Timeout:     cfg.BreakerTimeout,
		}),
		cache:   cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		wrapGCM: gcm,
		log:     log.WithComponent("keyvault"),
		metrics: m,
	}, nil
}

// GetOrCreateDataKey returns the DEK stored under altName, creating and
// persisting one on first use. Two concurrent first-time callers converge
// on one surviving key via the store's unique constraint on alt-name.
func (c *Client) GetOrCreateDataKey(ctx context.Context, altName string) (*KeyHandle, error) {
	if v, ok := c.cache.Get(altName); ok {
		c.countLookup("hit")
		return v.(*KeyHandle), nil
	}

	stored, err := c.getKey(ctx, altName)
	switch {
	case err == nil:
		c.countLookup("hit")
		return c.unwrapAndCache(stored)
	case stderrors.Is(err, errors.ErrNotFound):
		c.countLookup("miss")
		return c.createKey(ctx, altName)
	default:
		c.countLookup("error")
		return nil, err
	}
}

func (c *Client) getKey(ctx context.Context, altName string) (*model.DataKey, error) {
	var stored *model.DataKey
	err := c.breaker.Execute(func() error {
		var err error
		stored, err = c.store.GetKey(ctx, altName)
		if stderrors.Is(err, errors.ErrNotFound) {
			// A miss is a valid answer, not a breaker failure.
			stored = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, errors.KeyVaultUnavailable(err)
	}
	if stored == nil {
		return nil, errors.NotFound("data key")
	}
	return stored, nil
}

func (c *Client) createKey(ctx context.Context, altName string) (*KeyHandle, error) {
	dek := make([]byte, dekSize)
	if _, err := io.ReadFull(rand.Reader, dek); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}

	nonce := make([]byte, c.wrapGCM.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate wrapping nonce: %w", err)
	}
	wrapped := c.wrapGCM.Seal(nonce, nonce, dek, []byte(altName))

	key := &model.DataKey{
		ID:         uuid.New(),
		AltName:    altName,
		WrappedKey: wrapped,
		CreatedAt:  time.Now().UTC(),
	}

	err := c.breaker.Execute(func() error {
		return c.store.CreateKey(ctx, key)
	})
	if err != nil {
		if stderrors.Is(err, repository.ErrDuplicateKey) {
			// Lost the one-time create race; the winner's key is
			// authoritative.
			stored, gerr := c.getKey(ctx, altName)
			if gerr != nil {
				return nil, gerr
			}
			return c.unwrapAndCache(stored)
		}
		return nil, errors.KeyVaultUnavailable(err)
	}

	// Key creation is a privileged operation.
	c.log.Info("data encryption key created", "alt_name", altName, "key_id", key.ID.String())
	if c.metrics != nil {
		c.metrics.VaultKeyCreation.Inc()
	}

	handle := &KeyHandle{ID: key.ID, AltName: altName, Key: dek}
	c.cache.Set(altName, handle, cache.DefaultExpiration)
	return handle, nil
}

func (c *Client) unwrapAndCache(stored *model.DataKey) (*KeyHandle, error) {
	nonceSize := c.wrapGCM.NonceSize()
	if len(stored.WrappedKey) < nonceSize {
		return nil, errors.KeyCorrupt(stored.AltName)
	}
	nonce, sealed := stored.WrappedKey[:nonceSize], stored.WrappedKey[nonceSize:]
	dek, err := c.wrapGCM.Open(nil, nonce, sealed, []byte(stored.AltName))
	if err != nil || len(dek) != dekSize {
		return nil, errors.KeyCorrupt(stored.AltName)
	}

	handle := &KeyHandle{ID: stored.ID, AltName: stored.AltName, Key: dek}
	c.cache.Set(stored.AltName, handle, cache.DefaultExpiration)
	return handle, nil
}

func (c *Client) countLookup(result string) {
	if c.metrics != nil {
		c.metrics.VaultLookups.WithLabelValues(result).Inc()
	}
}
