package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/domain"
)

// versionTTL bounds how long an untouched version counter lives. It only has
// to outlast a single load.
const versionTTL = 24 * time.Hour

var errStaleLoad = errors.New("cache entry changed during load")

// QuizRepository caches community quizzes in Redis in front of a backing store.
// Definitions are stored as JSON:        SET quiz:def:{quizID}
// Playable listings are stored as JSON:  SET quiz:category:{category}
// Each cached key has a counter:         INCR quiz:ver:{key}
// Moderation updates bump the counters and evict both keys. A load writes its
// result back only while the counter it saw before reading is unchanged.
type QuizRepository struct {
	app.CommunityQuizStore

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, backing app.CommunityQuizStore, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		CommunityQuizStore: backing,
		client:             client,
		ttl:                ttl,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetByID(ctx context.Context, id string) (domain.CommunityQuiz, error) {
	var quiz domain.CommunityQuiz
	if r.readCache(ctx, r.defKey(id), &quiz) {
		return quiz, nil
	}

	result, err, _ := r.sf.Do("def:"+id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		var cached domain.CommunityQuiz
		if r.readCache(ctx, r.defKey(id), &cached) {
			return cached, nil
		}
		ver, ok := r.version(ctx, r.defKey(id))
		loaded, err := r.CommunityQuizStore.GetByID(ctx, id)
		if err != nil {
			return domain.CommunityQuiz{}, err
		}
		if ok {
			r.writeCache(ctx, r.defKey(id), ver, loaded)
		}
		return loaded, nil
	})
	if err != nil {
		return domain.CommunityQuiz{}, err
	}
	return result.(domain.CommunityQuiz).Clone(), nil
}

func (r *QuizRepository) ListApprovedByCategory(ctx context.Context, category string) ([]domain.CommunityQuiz, error) {
	var quizzes []domain.CommunityQuiz
	if r.readCache(ctx, r.categoryKey(category), &quizzes) {
		return quizzes, nil
	}

	result, err, _ := r.sf.Do("category:"+category, func() (interface{}, error) {
		ver, ok := r.version(ctx, r.categoryKey(category))
		loaded, err := r.CommunityQuizStore.ListApprovedByCategory(ctx, category)
		if err != nil {
			return nil, err
		}
		if ok {
			r.writeCache(ctx, r.categoryKey(category), ver, loaded)
		}
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	loaded := result.([]domain.CommunityQuiz)
	out := make([]domain.CommunityQuiz, len(loaded))
	for i, q := range loaded {
		out[i] = q.Clone()
	}
	return out, nil
}

func (r *QuizRepository) UpdateModeration(ctx context.Context, id string, from domain.ModerationStatus, rec domain.ModerationRecord) error {
	if err := r.CommunityQuizStore.UpdateModeration(ctx, id, from, rec); err != nil {
		return err
	}
	keys := []string{r.defKey(id)}
	flights := []string{"def:" + id}
	if quiz, err := r.CommunityQuizStore.GetByID(ctx, id); err == nil {
		keys = append(keys, r.categoryKey(quiz.Definition.Category))
		flights = append(flights, "category:"+quiz.Definition.Category)
	}
	_, _ = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, r.versionKey(key))
			pipe.Expire(ctx, r.versionKey(key), versionTTL)
		}
		pipe.Del(ctx, keys...)
		return nil
	})
	for _, f := range flights {
		r.sf.Forget(f)
	}
	return nil
}

// version reads the counter for key. ok is false when Redis cannot answer,
// in which case the caller skips caching.
func (r *QuizRepository) version(ctx context.Context, key string) (int64, bool) {
	n, err := r.client.Get(ctx, r.versionKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	return n, err == nil
}

func (r *QuizRepository) readCache(ctx context.Context, key string, dst any) bool {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		// redis.Nil is a miss; anything else degrades to the backing store.
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}

// writeCache stores v under key only while key's counter still equals ver.
func (r *QuizRepository) writeCache(ctx context.Context, key string, ver int64, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	verKey := r.versionKey(key)
	_ = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != ver {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, r.ttlWithJitter())
			return nil
		})
		return err
	}, verKey)
}

func (r *QuizRepository) defKey(id string) string {
	return "quiz:def:" + id
}

func (r *QuizRepository) categoryKey(category string) string {
	return "quiz:category:" + category
}

func (r *QuizRepository) versionKey(key string) string {
	return "quiz:ver:" + key
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
