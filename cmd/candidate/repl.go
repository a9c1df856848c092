package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/session"
)

var errNoQuestion = errors.New("no question is open; type start first")

// output serializes writes from the prompt loop and controller events.
type output struct {
	mu sync.Mutex
	w  io.Writer
}

func newOutput(w io.Writer) *output {
	return &output{w: w}
}

func (o *output) printf(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, format, args...)
}

// event renders controller events that need the candidate's attention.
func (o *output) event(e session.Event) {
	switch e.Kind {
	case session.EventStateChanged:
		o.printf("\n[%s]\n", e.State)
	case session.EventNotice:
		if e.Message != "" {
			o.printf("\n! %s\n", e.Message)
		}
	case session.EventSaveStatus:
		switch e.SaveStatus {
		case model.SaveStatusSaved:
			o.printf("  (saved)\n")
		case model.SaveStatusError:
			o.printf("  (autosave failed, your answer is kept locally)\n")
		}
	case session.EventTick:
		switch e.Remaining {
		case 300, 60, 10:
			o.printf("\n! %s left\n", formatRemaining(e.Remaining))
		}
	}
}

// controller is the part of session.Controller the prompt drives.
type controller interface {
	Start(ctx context.Context) error
	Submit(ctx context.Context) error
	SetAnswer(questionID string, r model.Response) error
	ClearAnswer(questionID string) error
	ToggleFlag(questionID string) (bool, error)
	Next() int
	Prev() int
	GoTo(index int) error
	Snapshot() session.Snapshot
}

type repl struct {
	ctrl controller
	out  *output
}

func (r *repl) banner() {
	s := r.ctrl.Snapshot()
	r.out.printf("%s\n", s.Title)
	switch s.State {
	case session.StateReady:
		r.out.printf("%d questions, %s. Type start when you are ready, help for commands.\n",
			s.Total, formatRemaining(s.Remaining))
	case session.StateInProgress:
		r.out.printf("Resuming: %d of %d answered, %s left.\n", s.Answered, s.Total, formatRemaining(s.Remaining))
		r.show()
	default:
		r.showStatus(s)
	}
}

// run reads commands until quit, end of input, ctx cancellation or a terminal
// session state.
func (r *repl) run(ctx context.Context, in *bufio.Scanner) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for in.Scan() {
			lines <- in.Text()
		}
	}()

	for {
		if r.ctrl.Snapshot().State.Terminal() {
			r.showStatus(r.ctrl.Snapshot())
			return
		}
		r.out.printf("> ")

		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := r.exec(ctx, line); quit {
				return
			}
		}
	}
}

// exec runs one command line and reports whether the prompt should exit.
func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "help", "?":
		r.help()
	case "start":
		if err = r.ctrl.Start(ctx); err == nil {
			r.show()
		}
	case "show":
		r.show()
	case "next", "n":
		r.ctrl.Next()
		r.show()
	case "prev", "p":
		r.ctrl.Prev()
		r.show()
	case "goto", "g":
		err = r.goTo(args)
	case "answer", "a":
		err = r.answer(args)
	case "clear":
		err = r.withQuestion(func(q *model.AssessmentQuestion) error {
			return r.ctrl.ClearAnswer(q.ID)
		})
	case "flag", "f":
		err = r.withQuestion(func(q *model.AssessmentQuestion) error {
			flagged, err := r.ctrl.ToggleFlag(q.ID)
			if err == nil {
				r.out.printf("flag %s\n", onOff(flagged))
			}
			return err
		})
	case "submit":
		if err = r.ctrl.Submit(ctx); err == nil {
			r.out.printf("Submitted. Thank you.\n")
		}
	case "quit", "exit", "q":
		return true
	default:
		r.out.printf("unknown command %q, type help\n", cmd)
	}

	if err != nil {
		r.out.printf("error: %v\n", err)
	}
	return false
}

func (r *repl) goTo(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: goto N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("not a question number: %q", args[0])
	}
	if err := r.ctrl.GoTo(n - 1); err != nil {
		return err
	}
	r.show()
	return nil
}

func (r *repl) answer(args []string) error {
	return r.withQuestion(func(q *model.AssessmentQuestion) error {
		resp, err := parseAnswer(q, args)
		if err != nil {
			return err
		}
		return r.ctrl.SetAnswer(q.ID, resp)
	})
}

func (r *repl) withQuestion(fn func(q *model.AssessmentQuestion) error) error {
	s := r.ctrl.Snapshot()
	if s.Question == nil {
		return errNoQuestion
	}
	return fn(s.Question)
}

// parseAnswer turns command arguments into a response. Choice questions take
// option numbers or option IDs; text questions take the rest of the line.
func parseAnswer(q *model.AssessmentQuestion, args []string) (model.Response, error) {
	if len(args) == 0 {
		return model.Response{}, errors.New("usage: answer <text> or answer <option>...")
	}
	if !q.Type.IsChoice() {
		return model.TextResponse(strings.Join(args, " ")), nil
	}

	ids := make([]string, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := optionID(q, part)
			if err != nil {
				return model.Response{}, err
			}
			ids = append(ids, id)
		}
	}

	if q.Type == model.QuestionTypeMultipleChoice {
		return model.MultiResponse(ids...), nil
	}
	if len(ids) != 1 {
		return model.Response{}, errors.New("pick exactly one option")
	}
	return model.TextResponse(ids[0]), nil
}

func optionID(q *model.AssessmentQuestion, token string) (string, error) {
	if q.HasOption(token) {
		return token, nil
	}
	if n, err := strconv.Atoi(token); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1].ID, nil
	}
	return "", fmt.Errorf("no option %q", token)
}

func (r *repl) show() {
	s := r.ctrl.Snapshot()
	if s.Question == nil {
		r.showStatus(s)
		return
	}
	q := s.Question

	var b strings.Builder
	fmt.Fprintf(&b, "\n── Question %d/%d · %s", s.Index+1, s.Total, q.Type)
	if q.Points > 0 {
		fmt.Fprintf(&b, " · %g pts", q.Points)
	}
	if s.Flagged {
		b.WriteString(" · flagged")
	}
	fmt.Fprintf(&b, "\n%s\n", q.Text)

	for i, o := range q.Options {
		mark := " "
		if s.Answer != nil && selected(*s.Answer, o.ID) {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] %d. %s\n", mark, i+1, o.Text)
	}
	if !q.Type.IsChoice() && s.Answer != nil && !s.Answer.IsEmpty() {
		fmt.Fprintf(&b, "  answer: %s\n", s.Answer.Value)
	}

	fmt.Fprintf(&b, "%s left · %d/%d answered · %d flagged", formatRemaining(s.Remaining), s.Answered, s.Total, s.FlaggedCount)
	if s.SaveStatus != model.SaveStatusIdle && s.SaveStatus != "" {
		fmt.Fprintf(&b, " · %s", s.SaveStatus)
	}
	b.WriteString("\n")
	if s.Notice != "" {
		fmt.Fprintf(&b, "! %s\n", s.Notice)
	}
	r.out.printf("%s", b.String())
}

func (r *repl) showStatus(s session.Snapshot) {
	msg := s.Error
	if msg == "" {
		msg = s.Notice
	}
	if msg == "" {
		msg = string(s.State)
	}
	r.out.printf("%s\n", msg)
}

func (r *repl) help() {
	r.out.printf(`Commands:
  start              begin the assessment and start the clock
  show               show the current question
  next, prev         move between questions
  goto N             jump to question N
  answer <text>      answer a text or coding question
  answer <opt>...    pick options by number or id (several for multiple choice)
  clear              clear the current answer
  flag               toggle the review flag
  submit             submit all answers
  quit               leave (answers already saved stay saved)
`)
}

func selected(r model.Response, optionID string) bool {
	if r.Multi {
		return slices.Contains(r.Values, optionID)
	}
	return r.Value == optionID
}

func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
