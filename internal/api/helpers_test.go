package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"phFolio/internal/auth"
	"phFolio/internal/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type published struct {
	channel string
	message string
}

// fakeRedis 是 RedisStore 的内存实现。
type fakeRedis struct {
	mu        sync.Mutex
	values    map[string]string
	ttls      map[string]time.Duration
	published []published
	getErr    error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (r *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, _ := strconv.ParseInt(r.values[key], 10, 64)
	n++
	r.values[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func (r *fakeRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.values[key]
	if ok {
		r.ttls[key] = expiration
	}
	return redis.NewBoolResult(ok, nil)
}

func (r *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return redis.NewStringResult("", r.getErr)
	}
	v, ok := r.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (r *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		r.values[key] = string(v)
	case string:
		r.values[key] = v
	default:
		r.values[key] = fmt.Sprint(v)
	}
	if expiration > 0 {
		r.ttls[key] = expiration
	}
	return redis.NewStatusResult("OK", nil)
}

func (r *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := r.values[k]; ok {
			n++
		}
		delete(r.values, k)
		delete(r.ttls, k)
	}
	return redis.NewIntResult(n, nil)
}

func (r *fakeRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ttl, ok := r.ttls[key]; ok {
		return redis.NewDurationResult(ttl, nil)
	}
	return redis.NewDurationResult(-2, nil)
}

func (r *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	var body string
	switch v := message.(type) {
	case []byte:
		body = string(v)
	default:
		body = fmt.Sprint(v)
	}
	r.published = append(r.published, published{channel: channel, message: body})
	return redis.NewIntResult(0, nil)
}

func (r *fakeRedis) has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.values[key]
	return ok
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:api_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err, "open sqlite")
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var (
	testKeysOnce sync.Once
	testPrivPEM  []byte
	testPubPEM   []byte
)

func newTestAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	testKeysOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testPrivPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		testPubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	})
	svc, err := auth.NewAuthService(testPrivPEM, testPubPEM, time.Minute, time.Hour)
	require.NoError(t, err)
	return svc
}

func createAccount(t *testing.T, db *gorm.DB, svc *auth.AuthService, username, password string) database.Account {
	t.Helper()
	hash, err := svc.HashPassword(password)
	require.NoError(t, err)
	account := database.Account{Username: username, Slug: strings.ToLower(username), PasswordHash: hash}
	require.NoError(t, db.Create(&account).Error)
	return account
}

func bearer(t *testing.T, svc *auth.AuthService, accountID uint) string {
	t.Helper()
	pair, err := svc.GenerateTokenPair(accountID)
	require.NoError(t, err)
	return "Bearer " + pair.AccessToken
}
