package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/frc5024/portguard/internal/domain"
)

// StatsStore implements domain.StatsStore with Redis hash counters:
//
//	<prefix>:total              allowed / conflict / reject
//	<prefix>:minute:<yyyymmddhhmm>  same fields, expires after ttl
//	<prefix>:policy             rejections per policy name
//	<prefix>:port               decisions per "80/tcp:<field>"
type StatsStore struct {
	rdb *goredis.Client

	prefix string
	// ttl applies to per-minute buckets only; totals never expire
	ttl time.Duration

	trackPorts bool
}

// Option configures a StatsStore
type Option func(*StatsStore)

func WithPrefix(prefix string) Option {
	return func(s *StatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets how long per-minute buckets live. Zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(s *StatsStore) { s.ttl = d }
}

func WithTrackPorts(track bool) Option {
	return func(s *StatsStore) { s.trackPorts = track }
}

// NewStatsStore creates a Redis-backed stats store
func NewStatsStore(rdb *goredis.Client, opts ...Option) *StatsStore {
	s := &StatsStore{
		rdb:    rdb,
		prefix: "portguard:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Field returns the hash field a decision is counted under
func Field(d domain.Decision) string {
	if d.Allowed {
		return "allowed"
	}
	if d.Action == domain.ActionConflict {
		return "conflict"
	}
	return "reject"
}

// Keys returns the keys Record touches for a decision taken at "at"
func (s *StatsStore) Keys(at time.Time) (total, bucket, policy, port string) {
	return s.prefix + ":total",
		fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504")),
		s.prefix + ":policy",
		s.prefix + ":port"
}

// Record counts one admission decision
func (s *StatsStore) Record(ctx context.Context, d domain.Decision) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := d.At
	if at.IsZero() {
		at = time.Now()
	}

	field := Field(d)
	totalKey, bucketKey, policyKey, portKey := s.Keys(at)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, totalKey, field, 1)
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	if d.Policy != "" {
		pipe.HIncrBy(ctx, policyKey, d.Policy, 1)
	}

	if s.trackPorts {
		pipe.HIncrBy(ctx, portKey, d.Port.Key()+":"+field, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record stats: %w", err)
	}
	return nil
}

// Totals reads the cumulative counters and the per-policy rejections
func (s *StatsStore) Totals(ctx context.Context) (domain.StatsTotals, error) {
	out := domain.StatsTotals{ByPolicy: map[string]int64{}}
	if s == nil || s.rdb == nil {
		return out, nil
	}

	totalKey, _, policyKey, _ := s.Keys(time.Now())

	pipe := s.rdb.Pipeline()
	totalCmd := pipe.HGetAll(ctx, totalKey)
	policyCmd := pipe.HGetAll(ctx, policyKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.StatsTotals{}, fmt.Errorf("failed to read stats: %w", err)
	}

	totals, err := parseCounters(totalCmd.Val())
	if err != nil {
		return domain.StatsTotals{}, err
	}
	out.Allowed = totals["allowed"]
	out.Conflicts = totals["conflict"]
	out.Rejected = totals["reject"]

	if out.ByPolicy, err = parseCounters(policyCmd.Val()); err != nil {
		return domain.StatsTotals{}, err
	}
	return out, nil
}

func parseCounters(raw map[string]string) (map[string]int64, error) {
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad counter %s=%q: %w", k, v, err)
		}
		out[k] = n
	}
	return out, nil
}
