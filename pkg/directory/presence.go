package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"astroline/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	presenceKeyPrefix = "astrologer:"        // per-astrologer profile JSON
	presenceSetKey    = "astrologers:active" // id set of recently seen profiles
)

// PresenceStore is the read-mostly client for the astrologer directory.
// The directory service publishes profiles with a TTL; a profile that
// stops being refreshed ages out, which the sync job interprets as the
// astrologer going offline. The routing core never mutates profiles.
type PresenceStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewPresenceStore creates a presence store with the given entry TTL.
func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{redis: client, ttl: ttl}
}

// Publish upserts one profile with the configured TTL. It exists for the
// directory side of the contract and for tests; the routing core only
// reads.
func (s *PresenceStore) Publish(ctx context.Context, profile *model.AstrologerProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	pipe := s.redis.Pipeline()
	pipe.Set(ctx, presenceKeyPrefix+profile.ID, data, s.ttl)
	pipe.SAdd(ctx, presenceSetKey, profile.ID)
	pipe.Expire(ctx, presenceSetKey, s.ttl*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish profile: %w", err)
	}
	return nil
}

// Get retrieves one profile.
func (s *PresenceStore) Get(ctx context.Context, id string) (*model.AstrologerProfile, error) {
	data, err := s.redis.Get(ctx, presenceKeyPrefix+id).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("astrologer not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile model.AstrologerProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return &profile, nil
}

// GetAll retrieves every live profile in one pipeline round-trip.
// Entries whose TTL elapsed between the set read and the fetch are
// skipped; the stale set member is cleaned up opportunistically.
func (s *PresenceStore) GetAll(ctx context.Context) ([]*model.AstrologerProfile, error) {
	ids, err := s.redis.SMembers(ctx, presenceSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get astrologer id set: %w", err)
	}
	if len(ids) == 0 {
		return []*model.AstrologerProfile{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.Get(ctx, presenceKeyPrefix+id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to fetch profiles: %w", err)
	}

	profiles := make([]*model.AstrologerProfile, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			// Expired between set read and fetch.
			_ = s.redis.SRem(ctx, presenceSetKey, ids[i]).Err()
			continue
		}
		var profile model.AstrologerProfile
		if err := json.Unmarshal([]byte(data), &profile); err != nil {
			continue
		}
		profiles = append(profiles, &profile)
	}
	return profiles, nil
}

// Remove drops one profile; used when the directory deactivates an
// astrologer explicitly instead of letting the entry age out.
func (s *PresenceStore) Remove(ctx context.Context, id string) error {
	pipe := s.redis.Pipeline()
	pipe.Del(ctx, presenceKeyPrefix+id)
	pipe.SRem(ctx, presenceSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove profile: %w", err)
	}
	return nil
}

// Count returns the number of live directory entries.
func (s *PresenceStore) Count(ctx context.Context) (int, error) {
	n, err := s.redis.SCard(ctx, presenceSetKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return int(n), nil
}
