// Package catalog holds the built-in question bank and the uniform shuffle
// used whenever questions are handed to a session.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"skillquiz-service/internal/domain"
)

//go:embed questions.yaml
var builtinYAML []byte

const (
	defaultDescription = "Test your technical knowledge in this category."
	defaultIcon        = "📚"
)

type fileFormat struct {
	Categories []struct {
		ID          string            `yaml:"id"`
		DisplayName string            `yaml:"displayName"`
		Description string            `yaml:"description"`
		Icon        string            `yaml:"icon"`
		Questions   []domain.Question `yaml:"questions"`
	} `yaml:"categories"`
}

type entry struct {
	meta      domain.Category
	questions []domain.Question
}

// Catalog is a read-only question bank keyed by lower-case category id.
type Catalog struct {
	order    []string
	entries  map[string]entry
	shuffler *Shuffler
}

// Builtin parses the embedded question bank.
func Builtin() (*Catalog, error) {
	return Parse(builtinYAML)
}

// Parse builds a catalog from YAML and checks every question's invariants.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		entries:  make(map[string]entry, len(f.Categories)),
		shuffler: NewShuffler(time.Now().UnixNano()),
	}
	for _, cat := range f.Categories {
		id := strings.ToLower(strings.TrimSpace(cat.ID))
		if id == "" {
			return nil, fmt.Errorf("catalog: category without id")
		}
		if _, dup := c.entries[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate category %q", id)
		}
		seen := make(map[string]struct{}, len(cat.Questions))
		for _, q := range cat.Questions {
			if _, dup := seen[q.ID]; dup {
				return nil, fmt.Errorf("catalog: duplicate question %q in %q", q.ID, id)
			}
			seen[q.ID] = struct{}{}
			if opt, dup := q.DuplicateOption(); dup {
				return nil, fmt.Errorf("catalog: question %q repeats option %q", q.ID, opt)
			}
			if !q.HasOption(q.CorrectAnswer) {
				return nil, fmt.Errorf("catalog: question %q correct answer is not an option", q.ID)
			}
		}

		meta := domain.Category{
			ID:            id,
			DisplayName:   cat.DisplayName,
			Description:   cat.Description,
			IconRef:       cat.Icon,
			QuestionCount: len(cat.Questions),
		}
		if meta.DisplayName == "" {
			meta.DisplayName = displayName(id)
		}
		if meta.Description == "" {
			meta.Description = defaultDescription
		}
		if meta.IconRef == "" {
			meta.IconRef = defaultIcon
		}
		c.order = append(c.order, id)
		c.entries[id] = entry{meta: meta, questions: cat.Questions}
	}
	return c, nil
}

// WithShuffler replaces the random source; tests use a seeded one.
func (c *Catalog) WithShuffler(s *Shuffler) *Catalog {
	c.shuffler = s
	return c
}

// Categories lists catalog entries in file order.
func (c *Catalog) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id].meta)
	}
	return out
}

// Fetch returns a uniform random permutation of the eligible questions,
// truncated to min(limit, eligible). Unknown categories yield an empty slice.
func (c *Catalog) Fetch(_ context.Context, category string, difficulty domain.Difficulty, limit int) ([]domain.Question, error) {
	if limit < 0 {
		return nil, domain.Validationf("limit must not be negative, got %d", limit)
	}
	e, ok := c.entries[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return []domain.Question{}, nil
	}

	eligible := make([]domain.Question, 0, len(e.questions))
	for _, q := range e.questions {
		if difficulty == "" || q.Difficulty == difficulty {
			eligible = append(eligible, q)
		}
	}
	c.shuffler.Shuffle(eligible)
	if limit < len(eligible) {
		eligible = eligible[:limit]
	}
	return eligible, nil
}

func displayName(id string) string {
	name := strings.NewReplacer("/", " ", "_", " ").Replace(id)
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Shuffler is a goroutine-safe Fisher-Yates shuffle.
type Shuffler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewShuffler(seed int64) *Shuffler {
	return &Shuffler{rnd: rand.New(rand.NewSource(seed))}
}

// Shuffle permutes questions in place.
func (s *Shuffler) Shuffle(questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}
