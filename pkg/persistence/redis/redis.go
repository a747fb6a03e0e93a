package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lockroot/lockroot-go/pkg/persistence"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixSnapshot    = "lockroot:snapshot:"
	keyPrefixLatest      = "lockroot:latest:"
	keySchemaVersion     = "lockroot:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key set for listing operations (Redis doesn't support prefix iteration natively)
	keySetSnapshots = "lockroot:snapshots:index"

	// Timeout applied to every Redis operation
	opTimeout = 5 * time.Second
)

// RedisStore is a snapshot store backed by Redis.
// Provides durable, distributed storage suitable for sharing commitments
// across CI runners.
type RedisStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string // Custom prefix for all keys
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant
	// setups). If set, it is prepended to all keys, e.g. "ci:" results in
	// keys like "ci:lockroot:snapshot:<id>".
	KeyPrefix string
}

// NewRedisStore creates a new Redis-backed snapshot store.
func NewRedisStore(cfg *RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis snapshot store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		// First time setup - set schema version
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// opCtx returns a context bounded by the per-operation timeout.
func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

// SaveSnapshot persists a snapshot and marks it latest for its lockfile path.
func (r *RedisStore) SaveSnapshot(snapshot *persistence.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("cannot save nil Snapshot")
	}
	if snapshot.ID == "" {
		return fmt.Errorf("cannot save Snapshot with empty ID")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	data, err := persistence.MarshalSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal Snapshot: %w", err)
	}

	ctx, cancel := opCtx()
	defer cancel()

	// Snapshot value, index membership and latest pointer in one round trip.
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(keyPrefixSnapshot+snapshot.ID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetSnapshots), snapshot.ID)
	pipe.Set(ctx, r.prefixKey(keyPrefixLatest+snapshot.LockfilePath), snapshot.ID, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save Snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot retrieves a snapshot by ID.
func (r *RedisStore) LoadSnapshot(id string) (*persistence.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	ctx, cancel := opCtx()
	defer cancel()

	return r.loadSnapshot(ctx, id)
}

// loadSnapshot reads and unmarshals a snapshot by ID.
// Callers must hold the read lock.
func (r *RedisStore) loadSnapshot(ctx context.Context, id string) (*persistence.Snapshot, error) {
	data, err := r.client.Get(ctx, r.prefixKey(keyPrefixSnapshot+id)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load Snapshot: %w", err)
	}

	snapshot, err := persistence.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal Snapshot: %w", err)
	}

	return snapshot, nil
}

// LoadLatestSnapshot retrieves the latest snapshot for a lockfile path.
func (r *RedisStore) LoadLatestSnapshot(lockfilePath string) (*persistence.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	ctx, cancel := opCtx()
	defer cancel()

	id, err := r.client.Get(ctx, r.prefixKey(keyPrefixLatest+lockfilePath)).Result()
	if err == redis.Nil {
		return nil, nil // No snapshot for this path yet
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve latest snapshot: %w", err)
	}

	return r.loadSnapshot(ctx, id)
}

// ListSnapshots returns all snapshots sorted by creation time.
func (r *RedisStore) ListSnapshots() ([]*persistence.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("snapshot store is closed")
	}

	ctx, cancel := opCtx()
	defer cancel()

	ids, err := r.client.SMembers(ctx, r.prefixKey(keySetSnapshots)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot index: %w", err)
	}

	snapshots := make([]*persistence.Snapshot, 0, len(ids))
	for _, id := range ids {
		snapshot, err := r.loadSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}
		if snapshot == nil {
			// Index entry without a value; skip it.
			r.logger.Sugar().Warnw("Snapshot in index but not in store, skipping", "id", id)
			continue
		}
		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt != snapshots[j].CreatedAt {
			return snapshots[i].CreatedAt < snapshots[j].CreatedAt
		}
		return snapshots[i].ID < snapshots[j].ID
	})

	return snapshots, nil
}

// DeleteSnapshot removes a snapshot by ID.
func (r *RedisStore) DeleteSnapshot(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	ctx, cancel := opCtx()
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.prefixKey(keyPrefixSnapshot+id))
	pipe.SRem(ctx, r.prefixKey(keySetSnapshots), id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete Snapshot: %w", err)
	}

	return nil
}

// Close shuts down the store.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil // Already closed, idempotent
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis snapshot store closed")
	return nil
}

// HealthCheck verifies the store is operational.
func (r *RedisStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("snapshot store is closed")
	}

	ctx, cancel := opCtx()
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	return nil
}
