package posts

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"postboard/internal/events"
	"postboard/internal/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// countingStore wraps memStore and counts reads that reach it.
type countingStore struct {
	*memStore
	mu    sync.Mutex
	reads map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{memStore: newMemStore(), reads: map[string]int{}}
}

func (s *countingStore) hit(name string) {
	s.mu.Lock()
	s.reads[name]++
	s.mu.Unlock()
}

func (s *countingStore) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[name]
}

func (s *countingStore) Find(ctx context.Context, opts QueryOptions) ([]Post, error) {
	s.hit("Find")
	return s.memStore.Find(ctx, opts)
}

func (s *countingStore) FindByID(ctx context.Context, id int64) (*Post, error) {
	s.hit("FindByID")
	return s.memStore.FindByID(ctx, id)
}

func (s *countingStore) FindCommentsByPostID(ctx context.Context, postID int64) ([]Comment, error) {
	s.hit("FindCommentsByPostID")
	return s.memStore.FindCommentsByPostID(ctx, postID)
}

// pausingStore holds the next armed read after it has loaded its result,
// so a write can land between the store read and the cache fill.
type pausingStore struct {
	*memStore
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func newPausingStore() *pausingStore {
	return &pausingStore{
		memStore: newMemStore(),
		loaded:   make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (s *pausingStore) hold() {
	if s.armed.CompareAndSwap(true, false) {
		close(s.loaded)
		<-s.release
	}
}

func (s *pausingStore) Find(ctx context.Context, opts QueryOptions) ([]Post, error) {
	posts, err := s.memStore.Find(ctx, opts)
	s.hold()
	return posts, err
}

func (s *pausingStore) FindByID(ctx context.Context, id int64) (*Post, error) {
	post, err := s.memStore.FindByID(ctx, id)
	s.hold()
	return post, err
}

func (s *pausingStore) FindCommentsByPostID(ctx context.Context, postID int64) ([]Comment, error) {
	comments, err := s.memStore.FindCommentsByPostID(ctx, postID)
	s.hold()
	return comments, err
}

func TestService_PublishesLifecycleEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewService(newMemStore(), nil, pub, logger.Discard())

	post, err := svc.Insert(ctx, PostInput{Title: "t", Contents: "c"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, post.ID, PostInput{Title: "t2", Contents: "c2"})
	require.NoError(t, err)

	_, err = svc.InsertComment(ctx, post.ID, CommentInput{Text: "hi"})
	require.NoError(t, err)

	n, err := svc.Remove(ctx, post.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.Equal(t, []string{
		events.TypePostCreated,
		events.TypePostUpdated,
		events.TypeCommentCreated,
		events.TypePostDeleted,
	}, pub.types())
}

func TestService_NoEventsForMisses(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewService(newMemStore(), nil, pub, logger.Discard())

	post, err := svc.Update(ctx, 99, PostInput{Title: "t", Contents: "c"})
	require.NoError(t, err)
	require.Nil(t, post)

	n, err := svc.Remove(ctx, 99)
	require.NoError(t, err)
	require.Zero(t, n)

	c, err := svc.InsertComment(ctx, 99, CommentInput{Text: "hi"})
	require.NoError(t, err)
	require.Nil(t, c)

	require.Empty(t, pub.types())
}

func TestService_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(newMemStore(), nil, pub, logger.Discard())

	post, err := svc.Insert(context.Background(), PostInput{Title: "t", Contents: "c"})
	require.NoError(t, err)
	require.NotNil(t, post)
}

func TestService_NilPublisherDefaultsToNoop(t *testing.T) {
	svc := NewService(newMemStore(), nil, nil, logger.Discard())

	_, err := svc.Insert(context.Background(), PostInput{Title: "t", Contents: "c"})
	require.NoError(t, err)
}

func TestCacheKeys(t *testing.T) {
	require.Equal(t, "post:5", postKey(5))
	require.Equal(t, "post:5:comments", commentsKey(5))
	require.Equal(t, "posts:list:sort=title:limit=3", listKey(QueryOptions{SortBy: "title", Limit: "3"}))
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestService_CachesReadsAndInvalidatesOnWrite(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := newCountingStore()
	svc := NewService(store, client, nil, logger.Discard())

	post, err := svc.Insert(ctx, PostInput{Title: "Hello", Contents: "World"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := svc.FindByID(ctx, post.ID)
		require.NoError(t, err)
		require.Equal(t, "Hello", got.Title)
	}
	require.Equal(t, 1, store.count("FindByID"))

	_, err = svc.Update(ctx, post.ID, PostInput{Title: "Changed", Contents: "World"})
	require.NoError(t, err)

	got, err := svc.FindByID(ctx, post.ID)
	require.NoError(t, err)
	require.Equal(t, "Changed", got.Title)
	require.Equal(t, 2, store.count("FindByID"))

	ttl, err := client.TTL(ctx, postKey(post.ID)).Result()
	require.NoError(t, err)
	require.True(t, ttl > 0 && ttl <= postTTL, "unexpected ttl %v", ttl)
}

func TestService_CommentsCache(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := newCountingStore()
	svc := NewService(store, client, nil, logger.Discard())

	post, err := svc.Insert(ctx, PostInput{Title: "Hello", Contents: "World"})
	require.NoError(t, err)

	comments, err := svc.FindCommentsByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, comments)
	require.Empty(t, comments)

	comments, err = svc.FindCommentsByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.NotNil(t, comments, "cached empty list must stay distinguishable from a missing post")
	require.Equal(t, 1, store.count("FindCommentsByPostID"))

	_, err = svc.InsertComment(ctx, post.ID, CommentInput{Text: "first"})
	require.NoError(t, err)

	comments, err = svc.FindCommentsByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, 2, store.count("FindCommentsByPostID"))

	_, err = svc.Remove(ctx, post.ID)
	require.NoError(t, err)

	comments, err = svc.FindCommentsByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Nil(t, comments)

	missing, err := svc.FindByID(ctx, post.ID)
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestService_ListCacheInvalidatedByInsert(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := newCountingStore()
	svc := NewService(store, client, nil, logger.Discard())

	list, err := svc.Find(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = svc.Find(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, store.count("Find"))

	_, err = svc.Insert(ctx, PostInput{Title: "a", Contents: "b"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := client.Exists(ctx, listKey(QueryOptions{})).Result()
		return err == nil && n == 0
	}, time.Second, 10*time.Millisecond)

	list, err = svc.Find(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 2, store.count("Find"))
}

func TestService_ReadRacingDeleteDoesNotResurrectPost(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := newPausingStore()
	svc := NewService(store, client, nil, logger.Discard())

	post, err := svc.Insert(ctx, PostInput{Title: "a", Contents: "b"})
	require.NoError(t, err)

	store.armed.Store(true)
	read := make(chan *Post, 1)
	go func() {
		p, _ := svc.FindByID(ctx, post.ID)
		read <- p
	}()

	<-store.loaded
	n, err := svc.Remove(ctx, post.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	close(store.release)

	require.NotNil(t, <-read, "the in-flight read saw the row before the delete")

	exists, err := client.Exists(ctx, postKey(post.ID)).Result()
	require.NoError(t, err)
	require.Zero(t, exists, "stale fill must not repopulate a deleted post")

	missing, err := svc.FindByID(ctx, post.ID)
	require.NoError(t, err)
	require.Nil(t, missing)

	w := doRequest(setupRouter(svc), http.MethodGet, "/api/posts/1", "")
	expect(t, w, http.StatusNotFound, "The post does not exist")
}

func TestService_ReadRacingCommentInsertDoesNotHideComment(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := newPausingStore()
	svc := NewService(store, client, nil, logger.Discard())

	post, err := svc.Insert(ctx, PostInput{Title: "a", Contents: "b"})
	require.NoError(t, err)

	store.armed.Store(true)
	read := make(chan []Comment, 1)
	go func() {
		c, _ := svc.FindCommentsByPostID(ctx, post.ID)
		read <- c
	}()

	<-store.loaded
	_, err = svc.InsertComment(ctx, post.ID, CommentInput{Text: "late"})
	require.NoError(t, err)
	close(store.release)

	require.Empty(t, <-read)

	comments, err := svc.FindCommentsByPostID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "late", comments[0].Text)
}

func TestService_ReadRacingInsertDoesNotCacheStaleList(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	store := newPausingStore()
	svc := NewService(store, client, nil, logger.Discard())

	store.armed.Store(true)
	read := make(chan []Post, 1)
	go func() {
		list, _ := svc.Find(ctx, QueryOptions{})
		read <- list
	}()

	<-store.loaded
	_, err := svc.Insert(ctx, PostInput{Title: "a", Contents: "b"})
	require.NoError(t, err)
	close(store.release)

	require.Empty(t, <-read)

	list, err := svc.Find(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestService_GenerationSurvivesListInvalidation(t *testing.T) {
	client := startRedis(t)
	ctx := context.Background()
	svc := NewService(newMemStore(), client, nil, logger.Discard())

	_, err := svc.Insert(ctx, PostInput{Title: "a", Contents: "b"})
	require.NoError(t, err)

	gen, err := client.Get(ctx, listGenKey).Int64()
	require.NoError(t, err)
	require.EqualValues(t, 1, gen)

	ttl, err := client.TTL(ctx, listGenKey).Result()
	require.NoError(t, err)
	require.True(t, ttl > 0 && ttl <= generationTTL, "unexpected ttl %v", ttl)
}
