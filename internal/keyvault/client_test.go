package keyvault

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/phi-api/internal/model"
	"github.com/jwalitptl/phi-api/internal/repository"
	"github.com/jwalitptl/phi-api/internal/repository/memory"
	"github.com/jwalitptl/phi-api/pkg/errors"
	"github.com/jwalitptl/phi-api/pkg/logger"
)

func testMasterKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(0xa0 + i)
	}
	return key
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newTestClient(t *testing.T, store repository.VaultStore) *Client {
	t.Helper()
	c, err := NewClient(store, Config{MasterKey: testMasterKey()}, testLogger(), nil)
	require.NoError(t, err)
	return c
}

func TestNewClientValidatesMasterKey(t *testing.T) {
	store := memory.NewVaultStore()
	log := testLogger()

	_, err := NewClient(store, Config{MasterKey: make([]byte, 32)}, log, nil)
	assert.Error(t, err, "all-zero master key must be rejected")

	_, err = NewClient(store, Config{MasterKey: []byte("short")}, log, nil)
	assert.Error(t, err)
}

func TestGetOrCreateDataKeyIdempotent(t *testing.T) {
	store := memory.NewVaultStore()
	client := newTestClient(t, store)
	ctx := context.Background()

	first, err := client.GetOrCreateDataKey(ctx, "primary-phi-key")
	require.NoError(t, err)
	require.Len(t, first.Key, 32)

	second, err := client.GetOrCreateDataKey(ctx, "primary-phi-key")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Key, second.Key)

	// A cold client over the same store must unwrap the same key.
	other := newTestClient(t, store)
	got, err := other.GetOrCreateDataKey(ctx, "primary-phi-key")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.Key, got.Key)
}

func TestDistinctAltNamesDistinctKeys(t *testing.T) {
	client := newTestClient(t, memory.NewVaultStore())
	ctx := context.Background()

	a, err := client.GetOrCreateDataKey(ctx, "key-a")
	require.NoError(t, err)
	b, err := client.GetOrCreateDataKey(ctx, "key-b")
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
}

// raceStore simulates losing the create race: the first lookup misses,
// the insert hits the unique constraint, and the re-read sees the winner.
type raceStore struct {
	winner *model.DataKey
	reads  int
}

func (s *raceStore) GetKey(ctx context.Context, altName string) (*model.DataKey, error) {
	s.reads++
	if s.reads == 1 {
		return nil, errors.NotFound("data key")
	}
	return s.winner, nil
}

func (s *raceStore) CreateKey(ctx context.Context, key *model.DataKey) error {
	return repository.ErrDuplicateKey
}

func TestCreateRaceConvergesOnWinner(t *testing.T) {
	ctx := context.Background()

	seed := memory.NewVaultStore()
	winnerClient := newTestClient(t, seed)
	winner, err := winnerClient.GetOrCreateDataKey(ctx, "primary-phi-key")
	require.NoError(t, err)
	stored, err := seed.GetKey(ctx, "primary-phi-key")
	require.NoError(t, err)

	loser := newTestClient(t, &raceStore{winner: stored})
	got, err := loser.GetOrCreateDataKey(ctx, "primary-phi-key")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, got.ID)
	assert.Equal(t, winner.Key, got.Key)
}

func TestCorruptKeySurfacesKeyCorrupt(t *testing.T) {
	store := memory.NewVaultStore()
	ctx := context.Background()

	_, err := newTestClient(t, store).GetOrCreateDataKey(ctx, "primary-phi-key")
	require.NoError(t, err)
	store.Corrupt("primary-phi-key")

	// Cold cache forces an unwrap of the corrupted bytes.
	_, err = newTestClient(t, store).GetOrCreateDataKey(ctx, "primary-phi-key")
	assert.ErrorIs(t, err, errors.ErrKeyCorrupt)
}

func TestStoreOutageSurfacesUnavailable(t *testing.T) {
	store := memory.NewVaultStore()
	store.FailNext = 1
	client := newTestClient(t, store)

	_, err := client.GetOrCreateDataKey(context.Background(), "primary-phi-key")
	assert.ErrorIs(t, err, errors.ErrKeyVaultUnavailable)

	// Outage cleared, the same call succeeds.
	_, err = client.GetOrCreateDataKey(context.Background(), "primary-phi-key")
	assert.NoError(t, err)
}
