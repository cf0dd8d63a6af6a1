package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

var adminSession = Session{Token: "tok-admin", UserType: UserTypeAdmin}

// exerciseStore runs the same lifecycle against any driver
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{}, got, "new store should hold no session")

	require.NoError(t, store.Save(ctx, adminSession))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, adminSession, got)

	replacement := Session{Token: "tok-user", UserType: UserTypeUser}
	require.NoError(t, store.Save(ctx, replacement))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, replacement, got)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.Authenticated())

	// clearing twice is a no-op
	require.NoError(t, store.Clear(ctx))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	exerciseStore(t, NewFile(path))
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFile(path)
	require.NoError(t, store.Save(context.Background(), adminSession))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_PartialRecordIsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"abc"}`), 0600))

	got, err := NewFile(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Session{}, got)
}

func TestFileStore_CorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0600))

	_, err := NewFile(path).Load(context.Background())
	assert.ErrorContains(t, err, "failed to parse session")
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	exerciseStore(t, NewKeyring("https://10.0.0.1:8090"))
}

func TestKeyringStore_PerServer(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	a := NewKeyring("https://a.example")
	b := NewKeyring("https://b.example")
	require.NoError(t, a.Save(ctx, adminSession))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, got.Authenticated())
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis("https://portal.example", RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	store, err := NewRedis("srv", RedisConfig{Addr: mr.Addr(), Prefix: "test:", TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), adminSession))

	assert.True(t, mr.Exists("test:srv"))
	mr.FastForward(2 * time.Minute)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, got.Authenticated())
}

func TestRedisStore_Unreachable(t *testing.T) {
	_, err := NewRedis("srv", RedisConfig{})
	assert.EqualError(t, err, "redis address required")
}

func TestSave_RejectsPartialSession(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, Session{Token: "abc"}))
	assert.Error(t, store.Save(ctx, Session{UserType: UserTypeUser}))
	assert.Error(t, store.Save(ctx, Session{Token: "abc", UserType: "root"}))
}

func TestMemoryStore_ConcurrentReadersSeeWholeSessions(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	sessions := []Session{
		{Token: "u", UserType: UserTypeUser},
		{Token: "a", UserType: UserTypeAdmin},
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if j%5 == 0 {
					_ = store.Clear(ctx)
					continue
				}
				_ = store.Save(ctx, sessions[(i+j)%2])
			}
		}(i)
	}

	for j := 0; j < 500; j++ {
		got, err := store.Load(ctx)
		require.NoError(t, err)
		switch got.Token {
		case "":
			assert.Equal(t, UserType(""), got.UserType)
		case "u":
			assert.Equal(t, UserTypeUser, got.UserType)
		case "a":
			assert.Equal(t, UserTypeAdmin, got.UserType)
		}
	}
	wg.Wait()
}

func TestNew_Drivers(t *testing.T) {
	keyring.MockInit()

	store, err := New(Config{}, "srv")
	require.NoError(t, err)
	assert.IsType(t, &keyringStore{}, store)

	store, err = New(Config{Driver: DriverMemory}, "srv")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	dir := t.TempDir()
	store, err = New(Config{Driver: DriverFile, FileDir: dir}, "https://10.0.0.1:8090")
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), adminSession))
	_, err = os.Stat(filepath.Join(dir, "10.0.0.1_8090.json"))
	assert.NoError(t, err)

	_, err = New(Config{Driver: DriverFile}, "srv")
	assert.Error(t, err)

	_, err = New(Config{Driver: "etcd"}, "srv")
	assert.EqualError(t, err, "unsupported session driver: etcd")
}

func TestParseUserType(t *testing.T) {
	tests := []struct {
		in      string
		want    UserType
		wantErr bool
	}{
		{"user", UserTypeUser, false},
		{"ADMIN", UserTypeAdmin, false},
		{" admin ", UserTypeAdmin, false},
		{"guest", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUserType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
