package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"sentinel-auth/internal/client"
	"sentinel-auth/internal/models"
)

func newTestClient(t *testing.T) (*client.RedisClient, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	rc := &client.RedisClient{Client: red.NewClient(&red.Options{Addr: server.Addr()})}

	t.Cleanup(func() {
		_ = rc.Close()
		server.Close()
	})

	return rc, server
}

func testRecord(phone string) *models.OTPRecord {
	now := time.Now().UTC()
	return &models.OTPRecord{
		Phone:         phone,
		CodeHash:      "hash-abc",
		Salt:          "salt-abc",
		HashAlgorithm: "argon2id",
		ExpiresAt:     now.Add(5 * time.Minute),
		CreatedAt:     now,
	}
}

func TestOTPStoreReplaceAndGet(t *testing.T) {
	rc, server := newTestClient(t)
	store := NewOTPStore(rc)
	ctx := context.Background()

	rec := testRecord("9876543210")
	if err := store.Replace(ctx, rec); err != nil {
		t.Fatalf("Replace returned error: %v", err)
	}

	got, err := store.Get(ctx, "9876543210")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.CodeHash != rec.CodeHash || got.Salt != rec.Salt || got.HashAlgorithm != rec.HashAlgorithm {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Consumed || got.Attempts != 0 {
		t.Errorf("fresh record consumed=%v attempts=%d", got.Consumed, got.Attempts)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("expires_at = %v, want %v", got.ExpiresAt, rec.ExpiresAt)
	}

	ttl := server.TTL("otp:9876543210")
	if ttl <= 5*time.Minute || ttl > 15*time.Minute+time.Second {
		t.Errorf("key TTL = %v, want expiry plus grace", ttl)
	}
}

func TestOTPStoreReplaceOverwrites(t *testing.T) {
	rc, _ := newTestClient(t)
	store := NewOTPStore(rc)
	ctx := context.Background()

	first := testRecord("9876543210")
	first.Attempts = 3
	if err := store.Replace(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := testRecord("9876543210")
	second.CodeHash = "hash-new"
	if err := store.Replace(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, "9876543210")
	if err != nil {
		t.Fatal(err)
	}
	if got.CodeHash != "hash-new" {
		t.Errorf("code_hash = %q, want the later record", got.CodeHash)
	}
	if got.Attempts != 0 {
		t.Errorf("attempts = %d, want reset to 0", got.Attempts)
	}
}

func TestOTPStoreGetMissing(t *testing.T) {
	rc, _ := newTestClient(t)
	store := NewOTPStore(rc)

	_, err := store.Get(context.Background(), "9876543210")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestOTPStoreConsumeIfMatch(t *testing.T) {
	rc, _ := newTestClient(t)
	store := NewOTPStore(rc)
	ctx := context.Background()

	res, err := store.ConsumeIfMatch(ctx, "9876543210", "hash-abc")
	if err != nil {
		t.Fatal(err)
	}
	if res != models.ConsumeMissing {
		t.Errorf("consume on empty store = %v, want ConsumeMissing", res)
	}

	if err := store.Replace(ctx, testRecord("9876543210")); err != nil {
		t.Fatal(err)
	}

	// Wrong hash keeps the record and counts the attempt.
	res, err = store.ConsumeIfMatch(ctx, "9876543210", "hash-wrong")
	if err != nil {
		t.Fatal(err)
	}
	if res != models.ConsumeMismatch {
		t.Errorf("wrong hash = %v, want ConsumeMismatch", res)
	}
	got, err := store.Get(ctx, "9876543210")
	if err != nil {
		t.Fatal(err)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts after mismatch = %d, want 1", got.Attempts)
	}
	if got.Consumed {
		t.Error("record consumed after mismatch")
	}

	res, err = store.ConsumeIfMatch(ctx, "9876543210", "hash-abc")
	if err != nil {
		t.Fatal(err)
	}
	if res != models.ConsumeOK {
		t.Errorf("matching hash = %v, want ConsumeOK", res)
	}

	// Second consume of the same record reports it as used.
	res, err = store.ConsumeIfMatch(ctx, "9876543210", "hash-abc")
	if err != nil {
		t.Fatal(err)
	}
	if res != models.ConsumeAlreadyUsed {
		t.Errorf("repeat consume = %v, want ConsumeAlreadyUsed", res)
	}

	// A wrong hash against a consumed record still reads as a mismatch.
	res, err = store.ConsumeIfMatch(ctx, "9876543210", "hash-wrong")
	if err != nil {
		t.Fatal(err)
	}
	if res != models.ConsumeMismatch {
		t.Errorf("wrong hash on consumed record = %v, want ConsumeMismatch", res)
	}
}

func TestOTPStoreDelete(t *testing.T) {
	rc, _ := newTestClient(t)
	store := NewOTPStore(rc)
	ctx := context.Background()

	if err := store.Replace(ctx, testRecord("9876543210")); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "9876543210"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "9876543210"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("err after delete = %v, want ErrRecordNotFound", err)
	}
}
