package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/geocatalyst/exam-engine/internal/config"
	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/model"
)

// Cache stores short-lived encoded values.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// LeaderboardRow is one rendered ranking line.
type LeaderboardRow struct {
	Rank          int    `json:"rank"`
	Name          string `json:"name"`
	Score         string `json:"score"`
	Percentage    string `json:"percentage"`
	Correct       int    `json:"correct"`
	Wrong         int    `json:"wrong"`
	TimeTaken     string `json:"time_taken"`
	Submitted     string `json:"submitted"`
	IsCurrentUser bool   `json:"is_current_user"`
	Podium        bool   `json:"podium"`
}

// ShareCard summarizes the viewer's own standing.
type ShareCard struct {
	TestName   string  `json:"test_name"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	TotalMarks float64 `json:"total_marks"`
	Percentage float64 `json:"percentage"`
	Text       string  `json:"text"`
}

// LeaderboardView is a leaderboard ready for display.
type LeaderboardView struct {
	TestID        string           `json:"test_id"`
	Title         string           `json:"title"`
	TotalAttempts int              `json:"total_attempts"`
	AvgScore      string           `json:"avg_score"`
	HighestScore  string           `json:"highest_score"`
	YourRank      string           `json:"your_rank"`
	Attempted     bool             `json:"attempted"`
	Rows          []LeaderboardRow `json:"rows"`
	EmptyMessage  string           `json:"empty_message,omitempty"`
	Share         *ShareCard       `json:"share,omitempty"`
	RefreshAfter  int              `json:"refresh_after_seconds"`
	GeneratedAt   time.Time        `json:"generated_at"`
}

// LeaderboardService renders leaderboards, caching each viewer's copy for
// one refresh interval.
type LeaderboardService struct {
	upstream UpstreamFactory
	cache    Cache
	refresh  time.Duration
	log      zerolog.Logger
}

func NewLeaderboardService(upstream UpstreamFactory, cache Cache, refresh time.Duration, log zerolog.Logger) *LeaderboardService {
	return &LeaderboardService{
		upstream: upstream,
		cache:    cache,
		refresh:  refresh,
		log:      log.With().Str("component", "leaderboard_service").Logger(),
	}
}

// Get returns the leaderboard of testID as seen by the token holder.
func (s *LeaderboardService) Get(ctx context.Context, upstreamToken, testID string) (*LeaderboardView, error) {
	key := config.CacheKey.LeaderboardKey(testID, Fingerprint(upstreamToken))

	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("test_id", testID).Msg("Leaderboard cache read failed")
		} else if ok {
			var v LeaderboardView
			if err := json.Unmarshal(b, &v); err == nil {
				return &v, nil
			}
		}
	}

	lb, err := s.upstream(upstreamToken).GetLeaderboard(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	v := RenderLeaderboard(lb, time.Now().UTC())
	v.RefreshAfter = int(s.refresh / time.Second)

	if s.cache != nil {
		if b, err := json.Marshal(v); err == nil {
			if err := s.cache.Set(ctx, key, b, s.refresh); err != nil {
				s.log.Warn().Err(err).Str("test_id", testID).Msg("Leaderboard cache write failed")
			}
		}
	}
	return v, nil
}

// RenderLeaderboard formats a backend leaderboard.
func RenderLeaderboard(lb *model.Leaderboard, now time.Time) *LeaderboardView {
	v := &LeaderboardView{
		TestID:        lb.TestID,
		Title:         lb.TestName,
		TotalAttempts: lb.TotalAttempts,
		AvgScore:      strconv.FormatFloat(lb.AvgScore, 'f', 2, 64) + "%",
		HighestScore:  exam.FormatMarks(lb.HighestScore) + "%",
		YourRank:      "-",
		Rows:          make([]LeaderboardRow, 0, len(lb.Attempts)),
		GeneratedAt:   now,
	}

	cu := lb.CurrentUser
	if cu != nil && cu.Attempted {
		v.Attempted = true
		v.YourRank = "#" + strconv.Itoa(cu.Rank)
		if cu.AttemptData != nil {
			v.Share = &ShareCard{
				TestName:   lb.TestName,
				Rank:       cu.Rank,
				Score:      cu.AttemptData.Score,
				TotalMarks: lb.TotalMarks,
				Percentage: cu.AttemptData.Percentage,
			}
			v.Share.Text = fmt.Sprintf("I ranked #%d in %s with %s/%s (%.2f%%)",
				cu.Rank, lb.TestName, exam.FormatMarks(cu.AttemptData.Score), exam.FormatMarks(lb.TotalMarks), cu.AttemptData.Percentage)
		}
	}

	if len(lb.Attempts) == 0 {
		v.EmptyMessage = "No attempts yet for this test"
		return v
	}

	for i, a := range lb.Attempts {
		rank := a.Rank
		if rank == 0 {
			rank = i + 1
		}
		name := a.UserName
		if name == "" {
			name = "Anonymous"
		}
		mine := v.Attempted && cu.AttemptData != nil && a.UserID == cu.AttemptData.UserID
		if mine {
			name += " (You)"
		}
		v.Rows = append(v.Rows, LeaderboardRow{
			Rank:          rank,
			Name:          name,
			Score:         exam.FormatMarks(a.Score) + " / " + exam.FormatMarks(lb.TotalMarks),
			Percentage:    strconv.FormatFloat(a.Percentage, 'f', 2, 64) + "%",
			Correct:       a.CorrectAnswers,
			Wrong:         a.WrongAnswers,
			TimeTaken:     exam.FormatDuration(a.TimeTaken),
			Submitted:     FormatSubmittedDate(a.SubmittedAt),
			IsCurrentUser: mine,
			Podium:        rank <= 3,
		})
	}
	return v
}

var doubleZone = regexp.MustCompile(`[+-]\d{2}:\d{2}Z$`)

// NormalizeTimestamp drops the trailing "Z" some backends append to a
// timestamp that already carries an offset.
func NormalizeTimestamp(s string) string {
	if doubleZone.MatchString(s) {
		return s[:len(s)-1]
	}
	return s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatSubmittedDate renders a submission timestamp as "02 Jan 2006".
func FormatSubmittedDate(s string) string {
	if s == "" {
		return "Unknown"
	}
	s = NormalizeTimestamp(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("02 Jan 2006")
		}
	}
	return "Invalid Date"
}
