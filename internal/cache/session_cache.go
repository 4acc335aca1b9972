package cache

import (
	"context"
	"encoding/json"
	"time"

	"vidyavichar/internal/model"

	"github.com/redis/go-redis/v9"
)

// SessionCache keeps the active session of each course in Redis.
// A miss means "ask the store"; it never encodes "no active session".
type SessionCache interface {
	GetActive(ctx context.Context, courseID string) (*model.Session, error)
	SetActive(ctx context.Context, session *model.Session) error
	ClearActive(ctx context.Context, courseID string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &sessionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *sessionCache) key(courseID string) string {
	return "course:" + courseID + ":active-session"
}

func (c *sessionCache) GetActive(ctx context.Context, courseID string) (*model.Session, error) {
	data, err := c.client.Get(ctx, c.key(courseID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *sessionCache) SetActive(ctx context.Context, session *model.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(session.CourseID), data, c.ttl).Err()
}

func (c *sessionCache) ClearActive(ctx context.Context, courseID string) error {
	return c.client.Del(ctx, c.key(courseID)).Err()
}
