package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/history"
	"github.com/geocatalyst/exam-engine/internal/service"
)

var (
	errColor    = color.New(color.FgRed)
	warnColor   = color.New(color.FgYellow, color.Bold)
	noticeColor = color.New(color.FgCyan)
	okColor     = color.New(color.FgGreen)
	dimColor    = color.New(color.Faint)
	headColor   = color.New(color.Bold)
)

var statusColor = map[exam.Status]*color.Color{
	exam.StatusNotVisited:     dimColor,
	exam.StatusNotAnswered:    errColor,
	exam.StatusAnswered:       okColor,
	exam.StatusMarked:         color.New(color.FgMagenta),
	exam.StatusAnsweredMarked: color.New(color.FgMagenta, color.Underline),
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  A, B, ...     select an option (toggles for multiple-select)
  = <value>     type a numerical answer
  k <keys>      press keypad keys, < is backspace
  n, next       save and next
  m, mark       mark for review and next
  x, clear      clear response
  j <number>    jump to a question
  p, palette    show the question palette
  s, submit     submit the test
  ?, help       this help
`)
}

func printInstructions(w io.Writer, ins exam.Instructions) {
	fmt.Fprintln(w, headColor.Sprint(ins.Title))
	if ins.Subject != "" {
		fmt.Fprintf(w, "Subject:   %s\n", ins.Subject)
	}
	fmt.Fprintf(w, "Duration:  %d minutes\n", ins.DurationMinutes)
	fmt.Fprintf(w, "Questions: %d\n", ins.QuestionCount)
	fmt.Fprintf(w, "Marks:     %s\n", exam.FormatMarks(ins.TotalMarks))
	if len(ins.Sections) > 0 {
		fmt.Fprintf(w, "Sections:  %s\n", strings.Join(ins.Sections, ", "))
	}

	fmt.Fprintln(w, "\nMarking scheme:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range ins.Scheme {
		fmt.Fprintf(tw, "  %s\t%d question(s)\t%s\n", l.Type, l.Count, l.Label)
	}
	tw.Flush()

	fmt.Fprintln(w, "\nThe timer starts when you begin. The test is submitted automatically when time runs out.")
	fmt.Fprintln(w, "Type ? at any time for the list of commands.")
}

func printQuestion(w io.Writer, st exam.State) {
	clock := st.Clock.Display
	if st.Clock.LowTime {
		clock = errColor.Sprint(clock)
	}
	fmt.Fprintf(w, "\n%s  [%s]\n", headColor.Sprint(st.Title), clock)

	q := st.Question
	if q == nil {
		fmt.Fprintf(w, "(%s)\n", st.Phase)
		return
	}
	fmt.Fprintf(w, "Q%d/%d  %s  %s  %s  %s\n", q.Number, len(st.Palette), q.Type, q.Section, okColor.Sprint(q.MarksLabel), errColor.Sprint(q.NegativeLabel))
	fmt.Fprintln(w, q.Body)
	if q.Image != nil {
		fmt.Fprintf(w, "Figure: %s\n", q.Image.FullSizeURL)
	}

	switch q.Control {
	case exam.ControlNumeric:
		value := q.Numeric.Value
		if value == "" {
			value = dimColor.Sprint("(empty)")
		}
		fmt.Fprintf(w, "Answer: %s\n", value)
		for _, row := range q.Numeric.Layout {
			keys := make([]string, len(row))
			for i, k := range row {
				if d, ok := q.Numeric.KeyDisplay[k]; ok {
					k = d
				}
				keys[i] = k
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(keys, "  "))
		}
	default:
		for _, o := range q.Options {
			mark := "( )"
			if q.Control == exam.ControlCheckbox {
				mark = "[ ]"
			}
			if o.Selected {
				mark = okColor.Sprint(strings.Replace(mark, " ", "x", 1))
			}
			fmt.Fprintf(w, "  %s %s) %s\n", mark, o.Label, o.Text)
		}
	}
}

func printPalette(w io.Writer, st exam.State) {
	for i, s := range st.Palette {
		label := fmt.Sprintf("%3d", i+1)
		if i == st.Current {
			label = fmt.Sprintf("[%d]", i+1)
		}
		if c, ok := statusColor[s]; ok {
			label = c.Sprint(label)
		}
		fmt.Fprint(w, label, " ")
		if (i+1)%10 == 0 {
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintln(w)
	printSummary(w, st.Summary)
}

func printSummary(w io.Writer, s exam.Summary) {
	fmt.Fprintf(w, "Answered %d, not answered %d, marked %d (answered and marked %d), not visited %d, of %d\n",
		s.Answered, s.NotAnswered, s.Marked, s.AnsweredMarked, s.NotVisited, s.Total)
}

func printResult(w io.Writer, r *exam.ResultView, auto bool) {
	if r == nil {
		return
	}
	title := "Test submitted"
	if auto {
		title += " automatically"
	}
	fmt.Fprintln(w, "\n"+headColor.Sprint(title))
	fmt.Fprintf(w, "Score:       %s (%s)\n", r.Score, r.Percentage)
	fmt.Fprintf(w, "Correct:     %d\n", r.Correct)
	fmt.Fprintf(w, "Wrong:       %d\n", r.Wrong)
	fmt.Fprintf(w, "Unattempted: %d\n", r.Unattempted)
	fmt.Fprintf(w, "Time taken:  %s\n", r.TimeTaken)
	if r.AttemptID != "" {
		fmt.Fprintf(w, "\nDetailed review: cbt review %s\n", r.AttemptID)
	}
}

var verdictColor = map[exam.Verdict]*color.Color{
	exam.VerdictCorrect:     okColor,
	exam.VerdictWrong:       errColor,
	exam.VerdictUnattempted: dimColor,
}

func printReview(w io.Writer, r *exam.Review) {
	fmt.Fprintln(w, headColor.Sprint(r.Title))
	fmt.Fprintf(w, "Score %s / %s (%.2f%%), time %s\n",
		exam.FormatMarks(r.Score), exam.FormatMarks(r.TotalMarks), r.Percentage, exam.FormatDuration(r.TimeTaken))
	fmt.Fprintf(w, "Correct %d, wrong %d, unattempted %d\n", r.Counts.Correct, r.Counts.Wrong, r.Counts.Unattempted)

	for _, it := range r.Items {
		verdict := string(it.Verdict)
		if c, ok := verdictColor[it.Verdict]; ok {
			verdict = c.Sprint(verdict)
		}
		fmt.Fprintf(w, "\nQ%d  %s  %s  +%s  %s\n", it.Number, it.Type, it.Section, exam.FormatMarks(it.Marks), verdict)
		fmt.Fprintln(w, it.Body)
		if it.ImageURL != "" {
			fmt.Fprintf(w, "Figure: %s\n", it.ImageURL)
		}
		for _, o := range it.Options {
			fmt.Fprintf(w, "  %s) %s\n", o.Key, o.Text)
		}
		fmt.Fprintf(w, "Your answer:    %s\n", it.YourAnswer)
		fmt.Fprintf(w, "Correct answer: %s\n", it.CorrectAnswer)
		if it.Explanation != "" {
			fmt.Fprintf(w, "Explanation:    %s\n", it.Explanation)
		}
		if it.SolutionImageURL != "" {
			fmt.Fprintf(w, "Solution:       %s\n", it.SolutionImageURL)
		}
	}
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No attempts recorded yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBMITTED\tTEST\tSCORE\t%\tTIME\tATTEMPT")
	for _, e := range entries {
		title := e.Title
		if e.AutoSubmitted {
			title += " (auto)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s / %s\t%.2f\t%s\t%s\n",
			e.SubmittedAt.Local().Format("02 Jan 2006 15:04"), title,
			exam.FormatMarks(e.Score), exam.FormatMarks(e.TotalMarks), e.Percentage,
			exam.FormatDuration(e.TimeTaken), e.AttemptID)
	}
	tw.Flush()
}

func printLeaderboard(w io.Writer, v *service.LeaderboardView) {
	fmt.Fprintln(w, headColor.Sprint(v.Title))
	fmt.Fprintf(w, "Attempts %d, average %s, highest %s, your rank %s\n", v.TotalAttempts, v.AvgScore, v.HighestScore, v.YourRank)
	if v.EmptyMessage != "" {
		fmt.Fprintln(w, v.EmptyMessage)
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tSCORE\t%\tCORRECT\tWRONG\tTIME\tDATE")
	for _, r := range v.Rows {
		name := r.Name
		if r.IsCurrentUser {
			name = okColor.Sprint(name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n", r.Rank, name, r.Score, r.Percentage, r.Correct, r.Wrong, r.TimeTaken, r.Submitted)
	}
	tw.Flush()

	if v.Share != nil {
		fmt.Fprintln(w, "\n"+noticeColor.Sprint(v.Share.Text))
	}
}
