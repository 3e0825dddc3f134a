// Package scoring converts answer sets into scores, percentages and
// experience/level progression. All functions are pure.
package scoring

import (
	"math"
	"time"

	"skillquiz-service/internal/domain"
)

const (
	// ExperiencePerCorrect is the XP awarded for each correct answer.
	ExperiencePerCorrect = 10
	// ExperiencePerLevel is the width of every level.
	ExperiencePerLevel = 100
)

// Band is a qualitative result tier.
type Band string

const (
	BandExpert   Band = "expert"
	BandStrong   Band = "strong"
	BandAdequate Band = "adequate"
	BandPractice Band = "practice"
)

var bandMessages = map[Band]string{
	BandExpert:   "Outstanding! You're a true expert!",
	BandStrong:   "Great job! You have solid knowledge!",
	BandAdequate: "Good effort! Keep learning and improving!",
	BandPractice: "Keep practicing! You'll get better with time.",
}

// Summary is the band and message shown for a finished quiz.
type Summary struct {
	Band       Band   `json:"band"`
	Message    string `json:"message"`
	Percentage int    `json:"percentage"`
}

// Percentage returns round(100*score/total), rounding halves up.
// total must be positive.
func Percentage(score, total int) int {
	if total <= 0 {
		panic("scoring: percentage of zero questions")
	}
	return roundHalfUp(100 * float64(score) / float64(total))
}

// ExperienceGained is the XP for a session with the given score.
func ExperienceGained(score int) int {
	return score * ExperiencePerCorrect
}

// Level starts at 1 for 0 XP; each level spans ExperiencePerLevel.
func Level(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/ExperiencePerLevel + 1
}

// ExperienceToNextLevel is always within [1, ExperiencePerLevel].
func ExperienceToNextLevel(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return Level(experience)*ExperiencePerLevel - experience
}

// AverageScorePercent averages the unrounded percentage of each past result.
// Entries with no questions are ignored; an empty history averages to 0.
func AverageScorePercent(past []domain.ScoreSummary) int {
	var sum float64
	n := 0
	for _, s := range past {
		if s.TotalQuestions <= 0 {
			continue
		}
		sum += 100 * float64(s.Score) / float64(s.TotalQuestions)
		n++
	}
	if n == 0 {
		return 0
	}
	return roundHalfUp(sum / float64(n))
}

// BandFor selects one of the four bands by percentage thresholds 90/70/50.
func BandFor(percentage int) Band {
	switch {
	case percentage >= 90:
		return BandExpert
	case percentage >= 70:
		return BandStrong
	case percentage >= 50:
		return BandAdequate
	default:
		return BandPractice
	}
}

// ResultSummary returns the band message for score out of total.
func ResultSummary(score, total int) Summary {
	pct := Percentage(score, total)
	band := BandFor(pct)
	return Summary{Band: band, Message: bandMessages[band], Percentage: pct}
}

// Completion is what a finished session hands to scoring.
type Completion struct {
	UserID         string
	Category       string
	Score          int
	TotalQuestions int
	Answers        []domain.AnswerEntry
	QuizID         string
	IsCustomQuiz   bool
	CompletedAt    time.Time
}

// BuildResult derives the result record and the profile delta for a completion.
func BuildResult(c Completion) (domain.ResultRecord, domain.ProfileDelta) {
	pct := Percentage(c.Score, c.TotalQuestions)
	xp := ExperienceGained(c.Score)
	answers := make([]domain.AnswerEntry, len(c.Answers))
	copy(answers, c.Answers)

	record := domain.ResultRecord{
		UserID:           c.UserID,
		Category:         c.Category,
		Score:            c.Score,
		TotalQuestions:   c.TotalQuestions,
		Answers:          answers,
		QuizID:           c.QuizID,
		IsCustomQuiz:     c.IsCustomQuiz,
		CompletedAt:      c.CompletedAt,
		Percentage:       pct,
		ExperiencePoints: xp,
	}
	delta := domain.ProfileDelta{
		ScoreDelta:      c.Score,
		ExperienceDelta: xp,
		Summary: domain.ScoreSummary{
			Score:          c.Score,
			TotalQuestions: c.TotalQuestions,
			Percentage:     pct,
			Category:       c.Category,
			Date:           c.CompletedAt,
			QuizID:         c.QuizID,
			IsCustomQuiz:   c.IsCustomQuiz,
		},
	}
	return record, delta
}

// ApplyDelta returns profile with delta applied, for stores that update in memory.
func ApplyDelta(p domain.Profile, delta domain.ProfileDelta) domain.Profile {
	p.TotalScore += delta.ScoreDelta
	p.QuizzesTaken++
	p.Experience += delta.ExperienceDelta
	scores := make([]domain.ScoreSummary, 0, len(p.Scores)+1)
	scores = append(scores, p.Scores...)
	p.Scores = append(scores, delta.Summary)
	at := delta.Summary.Date
	p.LastQuizAt = &at
	return p
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
