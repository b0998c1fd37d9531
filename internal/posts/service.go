package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"postboard/internal/events"
)

const (
	postTTL     = 5 * time.Minute
	commentsTTL = 2 * time.Minute
	listTTL     = 2 * time.Minute

	// Generation counters outlive any read that could still be filling.
	generationTTL = time.Hour
)

// errStaleFill aborts a cache fill whose generation moved during the read.
var errStaleFill = errors.New("cache generation changed")

// Service wraps a Store with a Redis read cache and lifecycle events.
// It satisfies Store itself, so handlers do not know whether they talk to
// the repository directly or through the cache.
type Service struct {
	store     Store
	cache     *redis.Client
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService creates a new posts service. cache may be nil to disable caching.
func NewService(store Store, cache *redis.Client, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{
		store:     store,
		cache:     cache,
		publisher: publisher,
		logger:    logger,
	}
}

// NewRedisClient connects to Redis and returns nil when it is unreachable,
// which leaves the service running uncached.
func NewRedisClient(ctx context.Context, addr, password string, db int, logger *slog.Logger) *redis.Client {
	if addr == "" {
		logger.Info("Redis address not set, caching disabled")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis connection failed, caching disabled", "addr", addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	logger.Info("Redis cache connected for posts service", "addr", addr)
	return rdb
}

func (s *Service) Find(ctx context.Context, opts QueryOptions) ([]Post, error) {
	key := listKey(opts)

	var cached []Post
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}

	gen, ok := s.generation(ctx, listGenKey)

	posts, err := s.store.Find(ctx, opts)
	if err != nil {
		return nil, err
	}

	if ok {
		s.fill(ctx, listGenKey, gen, key, posts, listTTL)
	}
	return posts, nil
}

func (s *Service) FindByID(ctx context.Context, id int64) (*Post, error) {
	key := postKey(id)

	var cached Post
	if s.getCached(ctx, key, &cached) {
		return &cached, nil
	}

	gen, ok := s.generation(ctx, postGenKey(id))

	post, err := s.store.FindByID(ctx, id)
	if err != nil || post == nil {
		return post, err
	}

	if ok {
		s.fill(ctx, postGenKey(id), gen, key, post, postTTL)
	}
	return post, nil
}

func (s *Service) FindCommentsByPostID(ctx context.Context, postID int64) ([]Comment, error) {
	key := commentsKey(postID)

	var cached []Comment
	if s.getCached(ctx, key, &cached) && cached != nil {
		return cached, nil
	}

	gen, ok := s.generation(ctx, postGenKey(postID))

	comments, err := s.store.FindCommentsByPostID(ctx, postID)
	if err != nil || comments == nil {
		return comments, err
	}

	if ok {
		s.fill(ctx, postGenKey(postID), gen, key, comments, commentsTTL)
	}
	return comments, nil
}

func (s *Service) Update(ctx context.Context, id int64, changes PostInput) (*Post, error) {
	post, err := s.store.Update(ctx, id, changes)
	if err != nil || post == nil {
		return post, err
	}

	s.advance(ctx, []string{postGenKey(id), listGenKey}, postKey(id))
	s.invalidatePattern(ctx, listPattern)
	s.publish(ctx, events.TypePostUpdated, id, post)

	return post, nil
}

func (s *Service) Insert(ctx context.Context, in PostInput) (*Post, error) {
	post, err := s.store.Insert(ctx, in)
	if err != nil {
		return nil, err
	}

	s.advance(ctx, []string{listGenKey})
	s.invalidatePattern(ctx, listPattern)
	s.publish(ctx, events.TypePostCreated, post.ID, post)

	return post, nil
}

func (s *Service) Remove(ctx context.Context, id int64) (int64, error) {
	n, err := s.store.Remove(ctx, id)
	if err != nil || n == 0 {
		return n, err
	}

	s.advance(ctx, []string{postGenKey(id), listGenKey}, postKey(id), commentsKey(id))
	s.invalidatePattern(ctx, listPattern)
	s.publish(ctx, events.TypePostDeleted, id, nil)

	return n, nil
}

func (s *Service) InsertComment(ctx context.Context, postID int64, in CommentInput) (*Comment, error) {
	comment, err := s.store.InsertComment(ctx, postID, in)
	if err != nil || comment == nil {
		return comment, err
	}

	s.advance(ctx, []string{postGenKey(postID)}, commentsKey(postID))
	s.publish(ctx, events.TypeCommentCreated, postID, comment)

	return comment, nil
}

// Cache keys. listGenKey sits outside listPattern so pattern invalidation
// never resets it.
const (
	listPattern = "posts:list:*"
	listGenKey  = "posts:gen:list"
)

func postKey(id int64) string     { return fmt.Sprintf("post:%d", id) }
func commentsKey(id int64) string { return fmt.Sprintf("post:%d:comments", id) }
func postGenKey(id int64) string  { return fmt.Sprintf("posts:gen:%d", id) }

func listKey(opts QueryOptions) string {
	return fmt.Sprintf("posts:list:sort=%s:limit=%s", opts.SortBy, opts.Limit)
}

func (s *Service) getCached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}

	data, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("Cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("Dropping undecodable cache entry", "key", key, "error", err)
		s.invalidate(ctx, key)
		return false
	}

	s.logger.Debug("Cache hit", "key", key)
	return true
}

// generation reads the counter guarding fills of genKey's entries. It must
// be taken before the store read. ok is false when no fill should happen.
func (s *Service) generation(ctx context.Context, genKey string) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}

	gen, err := s.cache.Get(ctx, genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		s.logger.Warn("Cache generation read failed", "key", genKey, "error", err)
		return 0, false
	}
	return gen, true
}

// fill stores value under key unless a write advanced genKey since gen was
// read. The check and the SET run in one WATCHed transaction.
func (s *Service) fill(ctx context.Context, genKey string, gen int64, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	err = s.cache.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("Skipping stale cache fill", "key", key)
	default:
		s.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

// advance bumps the generation counters and drops keys after a write. Fills
// that started before the write are rejected by fill.
func (s *Service) advance(ctx context.Context, genKeys []string, keys ...string) {
	if s.cache == nil {
		return
	}

	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, genKey := range genKeys {
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, generationTTL)
		}
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("Cache invalidation failed", "keys", keys, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("Cache invalidation failed", "keys", keys, "error", err)
	}
}

func (s *Service) invalidatePattern(ctx context.Context, pattern string) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		s.cache.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("Error scanning cache keys", "pattern", pattern, "error", err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, postID int64, payload any) {
	if err := s.publisher.Publish(ctx, events.New(eventType, postID, payload)); err != nil {
		s.logger.Error("Failed to publish post event",
			"type", eventType,
			"post_id", postID,
			"error", err)
	}
}
