package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/domain"
)

// QuizRepository caches community quiz lookups with a TTL in front of a
// slower store. Moderation updates evict the cached entry and bump its
// generation, so a load that raced an update never writes back.
type QuizRepository struct {
	app.CommunityQuizStore

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuiz
	gen   map[string]uint64
}

type cachedQuiz struct {
	quiz      domain.CommunityQuiz
	expiresAt time.Time
}

func NewQuizRepository(backing app.CommunityQuizStore, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		CommunityQuizStore: backing,
		ttl:                ttl,
		clock:              time.Now,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:              make(map[string]cachedQuiz),
		gen:                make(map[string]uint64),
	}
}

func (r *QuizRepository) GetByID(ctx context.Context, id string) (domain.CommunityQuiz, error) {
	if quiz, ok := r.lookup(id); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		if quiz, ok := r.lookup(id); ok {
			return quiz, nil
		}
		r.mu.RLock()
		gen := r.gen[id]
		r.mu.RUnlock()

		quiz, err := r.CommunityQuizStore.GetByID(ctx, id)
		if err != nil {
			return domain.CommunityQuiz{}, err
		}

		r.mu.Lock()
		if r.gen[id] == gen {
			r.cache[id] = cachedQuiz{
				quiz:      quiz.Clone(),
				expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
			}
		}
		r.mu.Unlock()
		return quiz, nil
	})
	if err != nil {
		return domain.CommunityQuiz{}, err
	}
	return result.(domain.CommunityQuiz).Clone(), nil
}

func (r *QuizRepository) UpdateModeration(ctx context.Context, id string, from domain.ModerationStatus, rec domain.ModerationRecord) error {
	err := r.CommunityQuizStore.UpdateModeration(ctx, id, from, rec)
	r.Invalidate(id)
	return err
}

// Invalidate drops id from the cache. Loads already in flight for id will
// not cache their result, and new callers start a fresh load.
func (r *QuizRepository) Invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.gen[id]++
	r.mu.Unlock()
	r.sf.Forget(id)
}

func (r *QuizRepository) lookup(id string) (domain.CommunityQuiz, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.CommunityQuiz{}, false
	}
	return entry.quiz.Clone(), true
}

func (r *QuizRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
