package domain

import "time"

// Difficulty grades a question or a whole quiz.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	// DifficultyMixed is only valid on a quiz definition.
	DifficultyMixed Difficulty = "mixed"
)

// ParseDifficulty accepts the empty string as "no filter".
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(raw); d {
	case "", DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, nil
	default:
		return "", Validationf("unknown difficulty %q", raw)
	}
}

// Question is one quiz item. CorrectAnswer must equal exactly one element of Options.
type Question struct {
	ID            string     `json:"id" yaml:"id"`
	Text          string     `json:"text" yaml:"text"`
	Options       []string   `json:"options" yaml:"options"`
	CorrectAnswer string     `json:"correctAnswer" yaml:"correctAnswer"`
	Difficulty    Difficulty `json:"difficulty" yaml:"difficulty"`
	Tags          []string   `json:"tags,omitempty" yaml:"tags"`
	Explanation   string     `json:"explanation,omitempty" yaml:"explanation"`
}

// HasOption reports whether option is one of the question's answers.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// DuplicateOption returns the first option that appears more than once.
func (q Question) DuplicateOption() (string, bool) {
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if _, dup := seen[o]; dup {
			return o, true
		}
		seen[o] = struct{}{}
	}
	return "", false
}

// QuizDefinition is the authored content of a quiz.
type QuizDefinition struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Category         string     `json:"category"`
	Difficulty       Difficulty `json:"difficulty"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	Tags             []string   `json:"tags"`
	Questions        []Question `json:"questions"`
}

// Category describes one built-in catalog entry.
type Category struct {
	ID            string `json:"id"`
	DisplayName   string `json:"displayName"`
	Description   string `json:"description"`
	IconRef       string `json:"iconRef"`
	QuestionCount int    `json:"questionCount"`
}

// AnswerEntry records the answer given to the question at QuestionIndex.
type AnswerEntry struct {
	QuestionIndex int    `json:"questionIndex"`
	Answer        string `json:"answer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// ResultRecord is the durable artifact of a completed session.
type ResultRecord struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	Category         string        `json:"category"`
	Score            int           `json:"score"`
	TotalQuestions   int           `json:"totalQuestions"`
	Answers          []AnswerEntry `json:"answers"`
	QuizID           string        `json:"quizId,omitempty"`
	IsCustomQuiz     bool          `json:"isCustomQuiz"`
	CompletedAt      time.Time     `json:"completedAt"`
	Percentage       int           `json:"percentage"`
	ExperiencePoints int           `json:"experiencePoints"`
}

// ScoreSummary is the per-quiz entry appended to a profile's score history.
type ScoreSummary struct {
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     int       `json:"percentage"`
	Category       string    `json:"category"`
	Date           time.Time `json:"date"`
	QuizID         string    `json:"quizId,omitempty"`
	IsCustomQuiz   bool      `json:"isCustomQuiz"`
}

// ProfileDelta is applied to a profile as one increment-and-append.
type ProfileDelta struct {
	ScoreDelta      int          `json:"scoreDelta"`
	ExperienceDelta int          `json:"experienceDelta"`
	Summary         ScoreSummary `json:"summary"`
}

// Profile holds the user fields the quiz core reads or updates.
type Profile struct {
	UserID       string         `json:"userId"`
	Username     string         `json:"username"`
	TotalScore   int            `json:"totalScore"`
	QuizzesTaken int            `json:"quizzesTaken"`
	Experience   int            `json:"experience"`
	Scores       []ScoreSummary `json:"scores"`
	IsAdmin      bool           `json:"isAdmin"`
	LastQuizAt   *time.Time     `json:"lastQuizAt,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// LeaderboardEntry is one row of the global score ranking.
type LeaderboardEntry struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	TotalScore   int    `json:"totalScore"`
	QuizzesTaken int    `json:"quizzesTaken"`
}

// ModerationStatus is the lifecycle state of a community-submitted quiz.
type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusApproved ModerationStatus = "approved"
	StatusRejected ModerationStatus = "rejected"
	StatusDeleted  ModerationStatus = "deleted"
)

// ParseModerationStatus accepts the empty string as "any status".
func ParseModerationStatus(raw string) (ModerationStatus, error) {
	switch s := ModerationStatus(raw); s {
	case "", StatusPending, StatusApproved, StatusRejected, StatusDeleted:
		return s, nil
	default:
		return "", Validationf("unknown moderation status %q", raw)
	}
}

// ModerationRecord is the approval-workflow state attached to a community quiz.
type ModerationRecord struct {
	Status          ModerationStatus `json:"status"`
	IsActive        bool             `json:"isActive"`
	ApprovedBy      string           `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time       `json:"approvedAt,omitempty"`
	RejectedBy      string           `json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time       `json:"rejectedAt,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	DeletedBy       string           `json:"deletedBy,omitempty"`
	DeletedAt       *time.Time       `json:"deletedAt,omitempty"`
	DeletionReason  string           `json:"deletionReason,omitempty"`
}

// Playable is the visibility rule for listing and play.
func (m ModerationRecord) Playable() bool {
	return m.Status == StatusApproved && m.IsActive
}

// CommunityQuiz is a user-submitted definition together with its moderation state.
type CommunityQuiz struct {
	ID         string           `json:"id"`
	CreatedBy  string           `json:"createdBy"`
	CreatedAt  time.Time        `json:"createdAt"`
	Definition QuizDefinition   `json:"definition"`
	Moderation ModerationRecord `json:"moderation"`
}

// Clone returns a copy that shares no slices with q.
func (q CommunityQuiz) Clone() CommunityQuiz {
	out := q
	out.Definition.Tags = append([]string(nil), q.Definition.Tags...)
	out.Definition.Questions = make([]Question, len(q.Definition.Questions))
	for i, question := range q.Definition.Questions {
		question.Options = append([]string(nil), question.Options...)
		question.Tags = append([]string(nil), question.Tags...)
		out.Definition.Questions[i] = question
	}
	return out
}

// Clone returns a copy that shares no slices with p.
func (p Profile) Clone() Profile {
	out := p
	out.Scores = append([]ScoreSummary{}, p.Scores...)
	return out
}
