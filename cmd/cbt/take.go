package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/geocatalyst/exam-engine/internal/backend"
	"github.com/geocatalyst/exam-engine/internal/exam"
	"github.com/geocatalyst/exam-engine/internal/history"
)

func takeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take <test-id>",
		Short: "Take a test",
		Args:  cobra.ExactArgs(1),
		RunE:  runTake,
	}
	cmd.Flags().BoolP("yes", "y", false, "Start without waiting on the instructions screen")
	return cmd
}

func runTake(cmd *cobra.Command, args []string) error {
	e := setup(cmd)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	client, err := e.client()
	if err != nil {
		return err
	}
	store, err := e.history()
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer store.Close()

	testID := args[0]
	if err := checkAttempt(ctx, client, store, testID, e.log); err != nil {
		return err
	}

	raw, err := client.GetTest(ctx, testID)
	if err != nil {
		return fmt.Errorf("load test: %w", err)
	}
	test, err := exam.NewTest(raw)
	if err != nil {
		return fmt.Errorf("load test: %w", err)
	}

	out := cmd.OutOrStdout()
	lines := readLines(cmd.InOrStdin())

	printInstructions(out, exam.BuildInstructions(test))
	if !e.v.GetBool("yes") {
		fmt.Fprint(out, "\nPress Enter to begin. ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-lines:
			if !ok {
				return io.ErrUnexpectedEOF
			}
		}
	}

	events := make(chan exam.Event, 8)
	s, err := exam.NewSession(test, client,
		exam.WithLogger(e.log),
		exam.WithBaseContext(ctx),
		exam.WithObserver(func(ev exam.Event) {
			if ev.Type == exam.EventTick {
				return
			}
			select {
			case events <- ev:
			default:
			}
		}),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Begin(); err != nil {
		return err
	}

	t := &terminal{s: s, out: out, lines: lines, events: events}
	if err := t.run(ctx); err != nil {
		return err
	}

	res, ok := s.Result()
	if !ok {
		return nil
	}
	st := s.State()
	printResult(out, st.Result, st.Auto)

	entry := history.Entry{
		AttemptID:     res.AttemptID,
		TestID:        test.ID,
		Title:         test.Title,
		Score:         res.Score,
		TotalMarks:    res.TotalMarks,
		Percentage:    res.Percentage,
		Correct:       res.CorrectAnswers,
		Wrong:         res.WrongAnswers,
		Unattempted:   res.Unattempted,
		TimeTaken:     res.TimeTaken,
		AutoSubmitted: st.Auto,
		SubmittedAt:   time.Now(),
	}
	if entry.TotalMarks <= 0 {
		entry.TotalMarks = test.TotalMarks
	}
	if err := store.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.log.Warn().Err(err).Str("attempt_id", res.AttemptID).Msg("Failed to record attempt history")
	}
	return nil
}

// checkAttempt refuses a test the user already attempted. When upstream
// cannot answer, the local history decides.
func checkAttempt(ctx context.Context, client *backend.Client, store *history.Store, testID string, log zerolog.Logger) error {
	check, err := client.CheckAttempt(ctx, testID)
	if err == nil {
		if check.Attempted {
			return backend.ErrAlreadyAttempted
		}
		return nil
	}

	log.Warn().Err(err).Str("test_id", testID).Msg("Attempt check failed, consulting local history")
	seen, herr := store.Attempted(ctx, testID)
	if herr != nil {
		log.Warn().Err(herr).Msg("History lookup failed")
		return nil
	}
	if seen {
		return backend.ErrAlreadyAttempted
	}
	return nil
}

func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// terminal drives one session from line commands.
type terminal struct {
	s      *exam.Session
	out    io.Writer
	lines  <-chan string
	events <-chan exam.Event
}

func (t *terminal) run(ctx context.Context) error {
	t.draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-t.events:
			switch ev.Type {
			case exam.EventTimeUp:
				fmt.Fprintln(t.out, warnColor.Sprint("\nTime is up. Submitting your answers..."))
			case exam.EventSubmitted:
				return nil
			case exam.EventSubmitFailed:
				if ev.Auto {
					return errors.New(ev.Error)
				}
			}

		case line, ok := <-t.lines:
			if !ok {
				return io.ErrUnexpectedEOF
			}
			done, err := t.handle(ctx, line)
			if err != nil {
				fmt.Fprintln(t.out, errColor.Sprint(err.Error()))
			}
			if done {
				return nil
			}
		}
	}
}

func (t *terminal) handle(ctx context.Context, line string) (bool, error) {
	if t.s.Phase() == exam.PhaseConfirming {
		return t.confirm(ctx, line)
	}

	c, err := parseCommand(line)
	if err != nil {
		return false, err
	}

	switch c.verb {
	case verbNone:
		return false, nil
	case verbHelp:
		printHelp(t.out)
		return false, nil
	case verbPalette:
		printPalette(t.out, t.s.State())
		return false, nil
	case verbNext:
		return false, t.move(t.s.SaveAndNext())
	case verbMark:
		return false, t.move(t.s.MarkForReview())
	case verbJump:
		return false, t.move(t.s.Jump(c.n - 1))
	case verbClear:
		err = t.s.ClearResponse()
	case verbText:
		err = t.s.SetText(c.arg)
	case verbKeys:
		for _, k := range c.keys {
			if err = t.s.PressKey(k); err != nil {
				break
			}
		}
	case verbPick:
		err = t.pick(c.arg)
	case verbSubmit:
		sum, err := t.s.RequestSubmit()
		if err != nil {
			return false, err
		}
		printSummary(t.out, sum)
		fmt.Fprint(t.out, "Submit now? [y/N] ")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	t.draw()
	return false, nil
}

func (t *terminal) confirm(ctx context.Context, line string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		if _, err := t.s.ConfirmSubmit(ctx); err != nil {
			var serr *exam.SubmitError
			if errors.As(err, &serr) && serr.Resumed {
				t.draw()
				return false, fmt.Errorf("%w, your answers are kept, try submitting again", err)
			}
			if errors.Is(err, exam.ErrAlreadySubmitted) {
				return true, nil
			}
			return true, err
		}
		return true, nil
	default:
		if err := t.s.CancelSubmit(); err != nil {
			return false, err
		}
		t.draw()
		return false, nil
	}
}

func (t *terminal) move(m exam.Move, err error) error {
	if err != nil {
		return err
	}
	t.draw()
	if m.Notice != "" {
		fmt.Fprintln(t.out, noticeColor.Sprint(m.Notice))
	}
	return nil
}

// pick selects or toggles the option named by token. Tokens match an
// option's label (A, B, ...) or its key.
func (t *terminal) pick(token string) error {
	st := t.s.State()
	if st.Question == nil {
		return exam.ErrNotActive
	}
	key, ok := resolveOption(st.Question, token)
	if !ok {
		return fmt.Errorf("%w: %s", exam.ErrUnknownOption, token)
	}
	if st.Question.Control == exam.ControlCheckbox {
		return t.s.Toggle(key)
	}
	return t.s.Select(key)
}

func resolveOption(v *exam.View, token string) (string, bool) {
	for _, o := range v.Options {
		if strings.EqualFold(o.Label, token) || strings.EqualFold(o.Key, token) {
			return o.Key, true
		}
	}
	return "", false
}

func (t *terminal) draw() {
	st := t.s.State()
	printQuestion(t.out, st)
}

type verb int

const (
	verbNone verb = iota
	verbHelp
	verbPalette
	verbNext
	verbMark
	verbClear
	verbJump
	verbSubmit
	verbText
	verbKeys
	verbPick
)

type command struct {
	verb verb
	arg  string
	n    int
	keys []string
}

var verbs = map[string]verb{
	"?": verbHelp, "h": verbHelp, "help": verbHelp,
	"p": verbPalette, "palette": verbPalette,
	"n": verbNext, "next": verbNext,
	"m": verbMark, "mark": verbMark,
	"x": verbClear, "clear": verbClear,
	"s": verbSubmit, "submit": verbSubmit,
}

// parseCommand reads one input line. Anything that is not a known verb is
// taken as an option pick, so verb shortcuts avoid the early option letters.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{verb: verbNone}, nil
	}

	if rest, ok := strings.CutPrefix(line, "="); ok {
		return command{verb: verbText, arg: strings.TrimSpace(rest)}, nil
	}

	fields := strings.Fields(line)
	head := strings.ToLower(fields[0])

	switch head {
	case "j", "jump":
		if len(fields) != 2 {
			return command{}, errors.New("usage: j <question number>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return command{}, fmt.Errorf("invalid question number %q", fields[1])
		}
		return command{verb: verbJump, n: n}, nil
	case "k", "keys":
		if len(fields) < 2 {
			return command{}, errors.New("usage: k <keys>, use < for backspace")
		}
		var keys []string
		for _, f := range fields[1:] {
			for _, r := range f {
				if r == '<' {
					keys = append(keys, exam.KeyBackspace)
					continue
				}
				keys = append(keys, string(r))
			}
		}
		return command{verb: verbKeys, keys: keys}, nil
	}

	if v, ok := verbs[head]; ok && len(fields) == 1 {
		return command{verb: v}, nil
	}
	if len(fields) != 1 {
		return command{}, fmt.Errorf("unknown command %q, type ? for help", line)
	}
	return command{verb: verbPick, arg: fields[0]}, nil
}
