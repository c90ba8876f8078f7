package model

// Leaderboard is the ranking for a single test as served by the backend.
type Leaderboard struct {
	TestID        string             `json:"testId"`
	TestName      string             `json:"testName"`
	TotalMarks    float64            `json:"totalMarks"`
	TotalAttempts int                `json:"totalAttempts"`
	AvgScore      float64            `json:"avgScore"`
	HighestScore  float64            `json:"highestScore"`
	Attempts      []LeaderboardEntry `json:"attempts"`
	CurrentUser   *CurrentUserRank   `json:"currentUser,omitempty"`
}

// LeaderboardEntry is one ranked attempt. Rank is zero when the backend
// omits it.
type LeaderboardEntry struct {
	UserID         string  `json:"userId"`
	UserName       string  `json:"userName"`
	Rank           int     `json:"rank"`
	Score          float64 `json:"score"`
	Percentage     float64 `json:"percentage"`
	CorrectAnswers int     `json:"correctAnswers"`
	WrongAnswers   int     `json:"wrongAnswers"`
	TimeTaken      int     `json:"timeTaken"`
	SubmittedAt    string  `json:"submittedAt"`
}

// CurrentUserRank locates the caller within a leaderboard.
type CurrentUserRank struct {
	Attempted   bool              `json:"attempted"`
	Rank        int               `json:"rank"`
	AttemptData *LeaderboardEntry `json:"attemptData,omitempty"`
}
