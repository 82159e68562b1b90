package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/drgame-ledger/pkg/logger"
	"github.com/nimasrn/drgame-ledger/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

type IdempotencyConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
	// MaxRetries of zero disables the retry budget.
	MaxRetries int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "retry:",
		LockKeyPrefix:      "lock:",
		ProcessedKeyPrefix: "processed:",
	}
}

// IdempotencyService guards work keyed by an external id (a stream message id or a
// payment authority): a short lock against concurrent handling and a long-lived
// processed marker against replays.
type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type ProcessingContext struct {
	Key          string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, key string) (*ProcessingContext, error) {
	exists, err := s.redis.Exist(ctx, s.config.ProcessedKeyPrefix+key)
	if err != nil {
		// the caller's own state checks still protect against a duplicate
		logger.Warn("failed to check processed marker", "key", key, "error", err)
	} else if exists > 0 {
		logger.Debug("already processed, skipping", "key", key)
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, key)
	if err != nil {
		logger.Warn("failed to read retry counter", "key", key, "error", err)
	}
	if s.config.MaxRetries > 0 && retryCount >= s.config.MaxRetries {
		logger.Error("max retries exceeded", "key", key, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: key=%s, retries=%d", ErrMaxRetriesExceeded, key, retryCount)
	}

	lockValue := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
	acquired, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+key, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("failed to acquire lock", "key", key, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Info("lock held by another worker", "key", key)
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "key", key, "retry_count", retryCount, "lock_ttl", s.config.LockTTL)
	return &ProcessingContext{
		Key:          key,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
	}, nil
}

func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+pc.Key, []byte("1"), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to set processed marker", "key", pc.Key, "error", err)
		return fmt.Errorf("mark processed: %w", err)
	}
	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+pc.Key, s.config.RetryKeyPrefix+pc.Key); err != nil {
		logger.Warn("failed to clean up lock", "key", pc.Key, "error", err)
	}
	pc.lockAcquired = false
	return nil
}

// MarkFailure bumps the retry counter and frees the lock so the work can be retried.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	retries, err := s.redis.Incr(ctx, s.config.RetryKeyPrefix+pc.Key, s.config.ProcessedTTL)
	if err != nil {
		logger.Error("failed to increment retry counter", "key", pc.Key, "error", err)
	}
	if err := s.ReleaseLock(ctx, pc); err != nil {
		return err
	}
	logger.Warn("processing failed, will retry",
		"key", pc.Key,
		"retry_count", retries,
		"max_retries", s.config.MaxRetries,
		"reason", reason)
	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	if err := s.redis.Del(ctx, s.config.LockKeyPrefix+pc.Key); err != nil {
		logger.Warn("failed to release lock", "key", pc.Key, "error", err)
		return err
	}
	pc.lockAcquired = false
	return nil
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, key string) (int, error) {
	raw, err := s.redis.Get(ctx, s.config.RetryKeyPrefix+key)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parse retry counter: %w", err)
	}
	return n, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.redis.Exist(ctx, s.config.ProcessedKeyPrefix+key)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
