package exam

import (
	"sort"
	"strconv"

	"github.com/geocatalyst/exam-engine/internal/model"
)

// SchemeLine is one row of the marking scheme.
type SchemeLine struct {
	Type     string  `json:"type"`
	Marks    float64 `json:"marks"`
	Negative float64 `json:"negative"`
	Count    int     `json:"count"`
	Label    string  `json:"label"`
}

// Instructions is the pre-start summary of a test.
type Instructions struct {
	Title           string       `json:"title"`
	Subject         string       `json:"subject,omitempty"`
	DurationMinutes int          `json:"duration_minutes"`
	QuestionCount   int          `json:"question_count"`
	TotalMarks      float64      `json:"total_marks"`
	Sections        []string     `json:"sections"`
	Scheme          []SchemeLine `json:"scheme"`
}

// BuildInstructions groups questions by type and mark value. The scheme
// shows a third of the marks as the MCQ penalty and no penalty for any
// other type, whatever the questions themselves carry.
func BuildInstructions(t *Test) Instructions {
	ins := Instructions{
		Title:           t.Title,
		Subject:         t.Subject,
		DurationMinutes: t.DurationMinutes,
		QuestionCount:   len(t.Questions),
		TotalMarks:      t.TotalMarks,
	}

	type groupKey struct {
		typ   model.QuestionType
		marks float64
	}
	groups := make(map[groupKey]*SchemeLine)
	order := make([]groupKey, 0)
	seenSection := make(map[string]bool)

	for _, q := range t.Questions {
		if s := SectionLabel(q.Section); !seenSection[s] {
			seenSection[s] = true
			ins.Sections = append(ins.Sections, s)
		}

		k := groupKey{q.Type(), q.Marks}
		g, ok := groups[k]
		if !ok {
			g = &SchemeLine{Type: TypeLabel(k.typ), Marks: k.marks}
			groups[k] = g
			order = append(order, k)
		}
		g.Count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].typ != order[j].typ {
			return typeRank(order[i].typ) < typeRank(order[j].typ)
		}
		return order[i].marks < order[j].marks
	})
	for _, k := range order {
		g := groups[k]
		penalty := "0"
		if k.typ == model.QuestionTypeMCQ {
			g.Negative = k.marks / 3
			penalty = strconv.FormatFloat(g.Negative, 'f', 2, 64)
		}
		g.Label = "+" + FormatMarks(g.Marks) + " / -" + penalty
		ins.Scheme = append(ins.Scheme, *g)
	}
	return ins
}

func typeRank(t model.QuestionType) int {
	switch t {
	case model.QuestionTypeMCQ:
		return 0
	case model.QuestionTypeMSQ:
		return 1
	case model.QuestionTypeNumerical:
		return 2
	default:
		return 3
	}
}
