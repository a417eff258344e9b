package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/madgic/madgic-chat/internal/config"
	"github.com/madgic/madgic-chat/internal/domain/chat"
	"github.com/madgic/madgic-chat/internal/domain/transcript"
	"github.com/madgic/madgic-chat/internal/infrastructure/logger"
	"github.com/madgic/madgic-chat/internal/interfaces/terminal"
)

const healthProbeTimeout = 5 * time.Second

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session in the terminal.

Type a message and press enter. On an empty chat a suggestion number picks one
of the starter prompts. Commands: /new, /mode, /stream, /help, /quit.`,
	RunE: runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask one question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	for _, cmd := range []*cobra.Command{chatCmd, askCmd} {
		cmd.Flags().String("mode", "", "agent or chatbot (default DEFAULT_MODE)")
		cmd.Flags().String("stream-mode", "", "stream or normal (default DEFAULT_STREAM_MODE)")
		cmd.Flags().String("thread", "", "Conversation thread id forwarded to the agent")
		cmd.Flags().Int("width", 0, "Render width in columns (default 80)")
	}
	chatCmd.Flags().String("session", "", "Resume an archived session by id")
}

// consoleSetup loads config and builds the chat service for an interactive command.
func consoleSetup(cmd *cobra.Command) (context.Context, *Console, zerolog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), nil, err
	}
	log := interactiveLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	console, cleanup, err := BuildConsole(ctx, cfg, log)
	if err != nil {
		stop()
		return nil, nil, log, nil, err
	}
	return ctx, console, log, func() {
		cleanup()
		stop()
	}, nil
}

func interactiveLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	log := logger.New(cfg)
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); !verbose && log.GetLevel() < zerolog.WarnLevel {
		log = log.Level(zerolog.WarnLevel)
	}
	return log
}

func sessionParams(cmd *cobra.Command) chat.CreateParams {
	mode, _ := cmd.Flags().GetString("mode")
	streamMode, _ := cmd.Flags().GetString("stream-mode")
	thread, _ := cmd.Flags().GetString("thread")
	return chat.CreateParams{
		Mode:       transcript.Mode(mode),
		StreamMode: transcript.StreamMode(streamMode),
		ThreadID:   thread,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, console, log, cleanup, err := consoleSetup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	status, err := console.Backend.Health(probeCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: backend is not reachable: %v\n", err)
	} else {
		log.Info().Str("backend_status", status).Msg("backend reachable")
	}

	var sess *chat.Session
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		sess, err = console.Service.Get(ctx, id)
	} else {
		sess, err = console.Service.Create(ctx, sessionParams(cmd))
	}
	if err != nil {
		return err
	}

	width, _ := cmd.Flags().GetInt("width")
	repl := terminal.NewREPL(sess, os.Stdin, os.Stdout, log, terminal.Options{
		Width:  width,
		Runner: console.Service.RunTurn,
	})
	if err := repl.Run(ctx); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\nsession: %s\n", sess.ID())
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, console, _, cleanup, err := consoleSetup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	sess, err := console.Service.Create(ctx, sessionParams(cmd))
	if err != nil {
		return err
	}

	width, _ := cmd.Flags().GetInt("width")
	return terminal.Ask(ctx, sess, strings.Join(args, " "), os.Stdout, width)
}
