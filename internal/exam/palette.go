package exam

// Status is the palette state of one question.
type Status string

const (
	StatusNotVisited     Status = "not-visited"
	StatusNotAnswered    Status = "not-answered"
	StatusAnswered       Status = "answered"
	StatusMarked         Status = "marked"
	StatusAnsweredMarked Status = "answered-marked"
)

// Flagged reports whether the question is marked for review.
func (s Status) Flagged() bool {
	return s == StatusMarked || s == StatusAnsweredMarked
}

// resolve picks the status implied by whether an answer exists and whether
// the review flag should be kept.
func resolve(answered, flagged bool) Status {
	switch {
	case answered && flagged:
		return StatusAnsweredMarked
	case answered:
		return StatusAnswered
	case flagged:
		return StatusMarked
	default:
		return StatusNotAnswered
	}
}

// Palette tracks one Status per question.
type Palette struct {
	statuses []Status
}

func NewPalette(n int) *Palette {
	p := &Palette{statuses: make([]Status, n)}
	p.Reset()
	return p
}

func (p *Palette) Len() int { return len(p.statuses) }

func (p *Palette) Status(i int) Status { return p.statuses[i] }

func (p *Palette) set(i int, s Status) { p.statuses[i] = s }

// Reset marks every question not-visited.
func (p *Palette) Reset() {
	for i := range p.statuses {
		p.statuses[i] = StatusNotVisited
	}
}

// Statuses returns a copy of all statuses in question order.
func (p *Palette) Statuses() []Status {
	return append([]Status(nil), p.statuses...)
}

// Summary counts statuses. AnsweredMarked questions are also included in
// both Answered and Marked.
type Summary struct {
	Total          int `json:"total"`
	Answered       int `json:"answered"`
	NotAnswered    int `json:"not_answered"`
	Marked         int `json:"marked"`
	AnsweredMarked int `json:"answered_marked"`
	NotVisited     int `json:"not_visited"`
}

func (p *Palette) Summary() Summary {
	sum := Summary{Total: len(p.statuses)}
	for _, s := range p.statuses {
		switch s {
		case StatusAnswered:
			sum.Answered++
		case StatusNotAnswered:
			sum.NotAnswered++
		case StatusMarked:
			sum.Marked++
		case StatusAnsweredMarked:
			sum.AnsweredMarked++
			sum.Answered++
			sum.Marked++
		case StatusNotVisited:
			sum.NotVisited++
		}
	}
	return sum
}
