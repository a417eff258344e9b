package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
)

// Options configure a REPL.
type Options struct {
	Width int
	// Runner runs a started turn. Nil runs it directly on the REPL goroutine.
	Runner func(ctx context.Context, run *chat.PendingTurn)
}

// REPL reads user input line by line and drives one chat session.
type REPL struct {
	sess    *chat.Session
	in      io.Reader
	printer *Printer
	runner  func(ctx context.Context, run *chat.PendingTurn)
	log     zerolog.Logger
}

// NewREPL creates a REPL over sess.
func NewREPL(sess *chat.Session, in io.Reader, out io.Writer, log zerolog.Logger, opts Options) *REPL {
	runner := opts.Runner
	if runner == nil {
		runner = func(ctx context.Context, run *chat.PendingTurn) { run.Run(ctx) }
	}
	return &REPL{
		sess:    sess,
		in:      in,
		printer: NewPrinter(out, opts.Width),
		runner:  runner,
		log:     log.With().Str("component", "repl").Logger(),
	}
}

// Run processes input until EOF, /quit, or ctx is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	remove := r.sess.Observe(r.printer)
	defer remove()

	view := r.sess.Snapshot()
	if len(view.Messages) > 0 {
		r.printer.MarkPrinted(view)
		r.printer.Println(r.printer.Render(view))
	} else {
		r.printer.Println(r.printer.theme.renderWelcome(view.Mode))
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		r.prompt()
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			quit, err := r.handle(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
		}
	}
}

func (r *REPL) prompt() {
	v := r.sess.Snapshot()
	r.printer.mu.Lock()
	defer r.printer.mu.Unlock()
	fmt.Fprint(r.printer.out, r.printer.theme.muted.Render(fmt.Sprintf("[%s·%s] ", v.Mode, v.StreamMode))+"> ")
}

// handle executes one input line and reports whether the REPL should stop.
func (r *REPL) handle(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return r.command(line)
	}

	view := r.sess.Snapshot()
	if len(view.Messages) == 0 {
		if text, ok := ResolveSuggestion(view.Mode, line); ok {
			line = text
			r.printer.Println(r.printer.theme.muted.Render("> " + text))
		}
	}

	run, err := r.sess.Start(line)
	switch {
	case errors.Is(err, chat.ErrTurnInProgress):
		r.printer.Println(r.printer.theme.errorText.Render("A response is still being generated."))
		return false, nil
	case err != nil:
		return false, err
	}
	r.runner(ctx, run)
	return false, nil
}

func (r *REPL) command(line string) (bool, error) {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	t := r.printer.theme

	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		r.printer.Println(t.renderHelp())
	case "/new":
		r.sess.Reset()
		r.printer.Println(t.renderWelcome(r.sess.Snapshot().Mode))
	case "/mode":
		mode := transcript.Mode(arg)
		if arg == "" {
			mode = transcript.ModeChatbot
			if r.sess.Snapshot().Mode == transcript.ModeChatbot {
				mode = transcript.ModeAgent
			}
		}
		if err := r.sess.SetMode(mode); err != nil {
			r.printer.Println(t.errorText.Render(err.Error()))
			return false, nil
		}
		r.printer.Println(t.muted.Render("mode: " + string(mode)))
	case "/stream":
		mode := transcript.StreamMode(arg)
		if arg == "" {
			mode = transcript.StreamModeNormal
			if r.sess.Snapshot().StreamMode == transcript.StreamModeNormal {
				mode = transcript.StreamModeStream
			}
		}
		if err := r.sess.SetStreamMode(mode); err != nil {
			r.printer.Println(t.errorText.Render(err.Error()))
			return false, nil
		}
		r.printer.Println(t.muted.Render("stream mode: " + string(mode)))
	default:
		r.printer.Println(t.errorText.Render("unknown command " + fields[0]))
		r.printer.Println(t.renderHelp())
	}
	return false, nil
}

// Ask runs a single turn and prints its progress to out. The returned error is
// set when the turn ended with an error message.
func Ask(ctx context.Context, sess *chat.Session, text string, out io.Writer, width int) error {
	printer := NewPrinter(out, width)
	remove := sess.Observe(printer)
	defer remove()

	if err := sess.Submit(ctx, text); err != nil {
		return err
	}

	last := sess.Snapshot().Messages.Last()
	if last != nil && isErrorText(last.Content) {
		return errors.New(strings.TrimPrefix(last.Content, chat.ErrorText("")))
	}
	return nil
}
