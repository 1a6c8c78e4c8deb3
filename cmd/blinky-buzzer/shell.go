package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sweeney/blinky-buzzer/internal/command"
	"github.com/sweeney/blinky-buzzer/internal/logging"
	"github.com/sweeney/blinky-buzzer/internal/status"
)

func newShellCmd() *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell driving the outputs live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			hw, err := openHardware(cfg)
			if err != nil {
				return err
			}
			defer hw.Close()

			sched := hw.scheduler(cfg)
			tracker := status.NewTracker(time.Now(), statusConfig(cfg))
			cmds := make(chan command.Command, commandQueueSize)
			sig := make(chan os.Signal, 1)

			ticker := time.NewTicker(cfg.Poll)
			defer ticker.Stop()

			done := make(chan error, 1)
			go func() {
				done <- runLoop(sched, nopPublisher{}, nil, tracker, 0, time.Now, ticker.C, cmds, sig)
			}()

			sh := &shell{cmds: cmds, tracker: tracker, out: os.Stdout}
			shellErr := sh.run(prompt)

			sig <- syscall.SIGINT
			if err := <-done; err != nil {
				return err
			}
			return shellErr
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "blinky> ", "shell prompt")
	return cmd
}

// shell reads lines, turns them into commands and queues them to the control loop.
type shell struct {
	cmds    chan<- command.Command
	tracker *status.Tracker
	out     io.Writer
}

func (s *shell) run(prompt string) error {
	historyFile := filepath.Join(os.TempDir(), "blinky-buzzer-shell.history")
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(s.out, "Type 'help' for commands, 'exit' to quit.")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Fprintln(s.out)
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(s.out)
			return nil
		}
		if err != nil {
			return err
		}
		if s.exec(line) {
			return nil
		}
	}
}

// exec handles one line and reports whether the shell should exit.
func (s *shell) exec(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	tokens, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintf(s.out, "parse error: %v\n", err)
		return false
	}
	if len(tokens) == 0 {
		return false
	}

	switch tokens[0] {
	case "exit", "quit":
		fmt.Fprintln(s.out, "Bye!")
		return true
	case "help":
		printShellHelp(s.out)
		return false
	case "status":
		s.out.Write(status.FormatJSON(s.tracker.Snapshot()))
		fmt.Fprintln(s.out)
		return false
	case "log":
		if err := s.handleLog(tokens[1:]); err != nil {
			fmt.Fprintf(s.out, "log: %v\n", err)
		}
		return false
	}

	c, err := command.Parse(tokens)
	if err != nil {
		if errors.Is(err, command.ErrUnknownAction) {
			fmt.Fprintf(s.out, "unknown command %q, try 'help'\n", tokens[0])
		} else {
			fmt.Fprintf(s.out, "command error: %v\n", err)
		}
		return false
	}

	select {
	case s.cmds <- c:
	default:
		fmt.Fprintln(s.out, "busy: command queue full")
	}
	return false
}

func (s *shell) handleLog(args []string) error {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var vcount int
	var level string
	var show bool
	fs.CountVarP(&vcount, "verbose", "v", "increase verbosity (-v debug, -vv trace)")
	fs.StringVar(&level, "level", "", "set level (error|warn|info|debug|trace)")
	fs.BoolVarP(&show, "show", "s", false, "show the current level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case show && vcount == 0 && level == "":
		fmt.Fprintf(s.out, "log level: %s\n", logging.CurrentLevel())
		return nil
	case level != "":
		l, err := logging.ParseLevel(level)
		if err != nil {
			return err
		}
		logging.SetLevel(l)
	case vcount > 0:
		logging.SetVerbosity(vcount)
	default:
		fmt.Fprintf(s.out, "log level: %s\n", logging.CurrentLevel())
		return nil
	}
	fmt.Fprintf(s.out, "log level set to %s\n", logging.CurrentLevel())
	return nil
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, `Commands:
  blink [times] [duty_ms]          # blink the LED (default forever)
  beep [times] [duty_ms]           # beep the buzzer
  buzz [times] [duty_ms]           # blink and beep together
  once light|tone|both [on_ms]     # a single cycle
  start light|tone|both [duty_ms]  # join a running cycle, or run forever
  stop [light|tone|all]            # stop one channel or everything
  set on|off|duty|freq|reps <n>    # change timing without starting
  status                           # print the status JSON
  log -vv | log --level debug      # change log verbosity
  log --show                       # show the current log level
  exit / quit                      # leave the shell`)
}
