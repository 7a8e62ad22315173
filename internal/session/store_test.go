package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mypt/mypt/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var trainer = Identity{Token: "tok-1", UserID: "trainer-1", Role: model.RoleTrainer}

func TestStore_IsActive_WithoutSession(t *testing.T) {
	s := NewStore(NewMemoryStorage())
	assert.False(t, s.IsActive())
	assert.Empty(t, s.Token())
}

func TestStore_Establish_PersistsRecord(t *testing.T) {
	clock := newFakeClock()
	storage := NewMemoryStorage()
	s := NewStore(storage, WithClock(clock))

	rec, err := s.Establish(trainer)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), rec.CreatedAt)
	assert.Equal(t, clock.Now(), rec.LastActiveAt)

	raw, err := storage.Load(StorageKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"userId":"trainer-1"`)
	assert.Contains(t, string(raw), `"role":"trainer"`)

	// 別のStoreから同じストレージを読めること
	other := NewStore(storage, WithClock(clock))
	cur, err := other.Current()
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "tok-1", cur.Token)
}

func TestStore_IsActive_Boundary(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(NewMemoryStorage(), WithClock(clock), WithTimeout(time.Hour))
	_, err := s.Establish(trainer)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Second)
	assert.True(t, s.IsActive(), "期限直前はアクティブ")

	clock.Advance(time.Second)
	assert.False(t, s.IsActive(), "期限ちょうどは失効")
}

func TestStore_Touch_ExtendsDeadline(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(NewMemoryStorage(), WithClock(clock))
	_, err := s.Establish(trainer)
	require.NoError(t, err)

	clock.Advance(50 * time.Minute)
	require.NoError(t, s.Touch())
	clock.Advance(50 * time.Minute)

	assert.True(t, s.IsActive())
}

func TestStore_Touch_WithoutSession(t *testing.T) {
	s := NewStore(NewMemoryStorage())
	assert.ErrorIs(t, s.Touch(), ErrNoSession)
}

func TestStore_CheckAndExpire(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(NewMemoryStorage(), WithClock(clock))

	status, err := s.CheckAndExpire()
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, status)

	_, err = s.Establish(trainer)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	status, err = s.CheckAndExpire()
	require.NoError(t, err)
	assert.Equal(t, StatusActive, status)

	cur, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), cur.LastActiveAt, "有効な場合は最終アクティブ日時を更新する")

	clock.Advance(time.Hour)
	status, err = s.CheckAndExpire()
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, status)

	cur, err = s.Current()
	require.NoError(t, err)
	assert.Nil(t, cur, "失効したセッションは破棄される")
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(NewMemoryStorage())
	_, err := s.Establish(trainer)
	require.NoError(t, err)

	require.NoError(t, s.Clear())
	assert.False(t, s.IsActive())
	// 二重のサインアウトでもエラーにならない
	require.NoError(t, s.Clear())
}

type brokenStorage struct{ Storage }

func (brokenStorage) Load(string) ([]byte, error) { return nil, errors.New("disk gone") }

func TestStore_StorageErrors(t *testing.T) {
	s := NewStore(brokenStorage{NewMemoryStorage()})

	assert.False(t, s.IsActive())
	_, err := s.CheckAndExpire()
	assert.Error(t, err)
	assert.Error(t, s.Touch())
}

func TestStore_CorruptRecord(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(StorageKey, []byte("{not json")))
	s := NewStore(storage)

	_, err := s.Current()
	assert.Error(t, err)
}

func TestBadgerStorage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	storage, err := OpenBadgerStorage(dir)
	require.NoError(t, err)

	clock := newFakeClock()
	s := NewStore(storage, WithClock(clock))
	_, err = s.Establish(trainer)
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	// 再オープン後もセッションが残っていること
	reopened, err := OpenBadgerStorage(dir)
	require.NoError(t, err)
	defer reopened.Close()

	s = NewStore(reopened, WithClock(clock))
	assert.True(t, s.IsActive())
	assert.Equal(t, "tok-1", s.Token())

	require.NoError(t, s.Clear())
	raw, err := reopened.Load(StorageKey)
	require.NoError(t, err)
	assert.Nil(t, raw)
}
