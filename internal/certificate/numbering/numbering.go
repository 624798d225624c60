// Package numbering generates certificate numbers of the form
// CERT + yyyyMMddHHmmss + 6 random digits + 6-digit sequence.
package numbering

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"certificate-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	Prefix    = "CERT"
	Length    = 30
	bucketFmt = "20060102150405"
	seqModulo = 1_000_000
	bucketTTL = 2 * time.Minute
)

// Sequence hands out increasing values per time bucket.
type Sequence interface {
	Next(ctx context.Context, bucket string) (int64, error)
}

// RedisSequence shares the counter across processes with one key per second bucket.
type RedisSequence struct {
	client redis.Cmdable
}

func NewRedisSequence(client redis.Cmdable) *RedisSequence {
	return &RedisSequence{client: client}
}

// Next increments the bucket key and refreshes its TTL in one MULTI/EXEC, so a key never
// outlives its bucket.
func (s *RedisSequence) Next(ctx context.Context, bucket string) (int64, error) {
	key := "cert:seq:" + bucket

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, bucketTTL)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// AtomicSequence is a process-local counter. Buckets are ignored; the value wraps at the
// sequence modulus when formatted.
type AtomicSequence struct {
	n atomic.Int64
}

func (s *AtomicSequence) Next(_ context.Context, _ string) (int64, error) {
	return s.n.Add(1), nil
}

type Generator struct {
	seq      Sequence
	fallback *AtomicSequence
	now      func() time.Time
	logger   logger.Logger
}

// NewGenerator uses seq when non-nil and falls back to a local counter whenever it fails.
func NewGenerator(seq Sequence, log logger.Logger) *Generator {
	return &Generator{
		seq:      seq,
		fallback: &AtomicSequence{},
		now:      time.Now,
		logger:   log.WithFields(map[string]interface{}{"component": "numbering"}),
	}
}

func (g *Generator) Generate(ctx context.Context) (string, error) {
	bucket := g.now().Format(bucketFmt)

	r, err := rand.Int(rand.Reader, big.NewInt(seqModulo))
	if err != nil {
		return "", fmt.Errorf("random digits: %w", err)
	}

	var n int64
	if g.seq != nil {
		n, err = g.seq.Next(ctx, bucket)
		if err != nil {
			g.logger.Warn("shared sequence unavailable, using local counter", map[string]interface{}{
				"error": err,
			})
		}
	}
	if g.seq == nil || err != nil {
		n, _ = g.fallback.Next(ctx, bucket)
	}

	return fmt.Sprintf("%s%s%06d%06d", Prefix, bucket, r.Int64(), n%seqModulo), nil
}

// Valid reports whether no has the certificate number shape.
func Valid(no string) bool {
	if len(no) != Length || no[:len(Prefix)] != Prefix {
		return false
	}
	for _, c := range no[len(Prefix):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
