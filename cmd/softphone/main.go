package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sebas/softphone/internal/config"
	"github.com/sebas/softphone/internal/events"
	"github.com/sebas/softphone/internal/history"
	"github.com/sebas/softphone/internal/kv"
	"github.com/sebas/softphone/internal/logger"
	"github.com/sebas/softphone/internal/phone"
	"github.com/sebas/softphone/internal/signaling"
	"github.com/sebas/softphone/internal/tone"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flagUsageHint()
		os.Exit(1)
	}

	// Initialize logger
	outputs := []io.Writer{os.Stdout}
	if cfg.LogFile != "" {
		outputs = append(outputs, logger.FileOutput(cfg.LogFile))
	}
	logger.InitLogger(outputs...)
	logger.SetLevel(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("Softphone failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	slog.Info("Starting softphone",
		"extension", cfg.Extension,
		"server", cfg.Server,
		"port", cfg.Port,
	)

	// Tone output chain: speaker when available, optional mu-law capture,
	// silent fallback otherwise.
	engine, closeSinks := buildToneEngine(cfg)
	defer closeSinks()

	slot, err := kv.NewSQLiteStore(cfg.HistoryDBPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer slot.Close()

	hist, err := history.NewStore(slot)
	if err != nil {
		return fmt.Errorf("load call history: %w", err)
	}

	bus := events.NewBus()
	subscribeNotifications(bus)

	client := signaling.NewClient(signaling.Config{
		BindAddr:      cfg.BindAddr,
		Port:          cfg.Port,
		AdvertiseAddr: cfg.AdvertiseAddr,
	})
	p := phone.New(client, engine, hist, bus)

	identity := signaling.Identity{
		Extension:   cfg.Extension,
		Password:    cfg.Password,
		DisplayName: cfg.DisplayName,
	}
	connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = p.Connect(connectCtx, identity, cfg.Server)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Disconnect(); err != nil {
			slog.Warn("Disconnect failed", "error", err)
		}
	}()

	// Shut down cleanly on SIGINT/SIGTERM or when the command loop exits.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		commandLoop(p, hist)
		close(done)
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down", "signal", sig)
	case <-done:
	}
	return nil
}

func buildToneEngine(cfg *config.Config) (*tone.Engine, func()) {
	var sinks []tone.Sink
	var closers []func()

	if cfg.AudioEnabled {
		speaker, err := tone.NewSpeakerSink()
		if err != nil {
			slog.Warn("No audio device, tones are silent", "error", err)
		} else {
			sinks = append(sinks, speaker)
		}
	}
	if cfg.ToneRecordPath != "" {
		f, err := os.Create(cfg.ToneRecordPath)
		if err != nil {
			slog.Warn("Tone capture disabled", "path", cfg.ToneRecordPath, "error", err)
		} else {
			sinks = append(sinks, tone.NewRecorderSink(f))
			closers = append(closers, func() { f.Close() })
		}
	}

	var sink tone.Sink
	switch len(sinks) {
	case 0:
		sink = nil // engine degrades to logged no-ops
	case 1:
		sink = sinks[0]
	default:
		sink = tone.NewTeeSink(sinks...)
	}

	engine := tone.NewEngine(sink)
	return engine, func() {
		engine.ReleaseAll()
		for _, c := range closers {
			c()
		}
	}
}

// subscribeNotifications prints call activity to the terminal. The bus is
// the only feed the UI layer consumes.
func subscribeNotifications(bus *events.Bus) {
	bus.Subscribe(events.IncomingCall, func(ev events.Event) {
		name := ev.RemoteName
		if name == "" {
			name = ev.RemoteAddress
		}
		fmt.Printf("\n*** Incoming call from %s (%s) -- answer/decline ***\n> ", name, ev.RemoteAddress)
	})
	bus.Subscribe(events.CallAccepted, func(ev events.Event) {
		fmt.Printf("\n*** Call with %s established ***\n> ", ev.RemoteAddress)
	})
	bus.Subscribe(events.CallEnded, func(ev events.Event) {
		fmt.Printf("\n*** Call ended (%s) ***\n> ", ev.Reason)
	})
	bus.Subscribe(events.CallFailed, func(ev events.Event) {
		fmt.Printf("\n*** Call failed ***\n> ")
	})
	bus.Subscribe(events.CallTransferred, func(ev events.Event) {
		fmt.Printf("\n*** Transfer code sent ***\n> ")
	})
	bus.Subscribe(events.ConferenceStarted, func(ev events.Event) {
		fmt.Printf("\n*** Conference code sent ***\n> ")
	})
}

func commandLoop(p *phone.Phone, hist *history.Store) {
	fmt.Println("Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, arg := fields[0], ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		var err error
		switch cmd {
		case "dial", "d":
			if arg == "" {
				fmt.Println("usage: dial <target>")
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			err = p.Dial(ctx, arg)
			cancel()
		case "answer", "a":
			err = p.Answer()
		case "decline":
			err = p.Decline()
		case "hangup", "h":
			err = p.Hangup()
		case "mute", "m":
			err = p.ToggleMute()
		case "hold":
			err = p.ToggleHold()
		case "digit":
			if len(arg) != 1 {
				fmt.Println("usage: digit <symbol>")
				continue
			}
			err = p.SendDigit(rune(arg[0]))
		case "transfer", "t":
			if arg == "" {
				fmt.Println("usage: transfer <target>")
				continue
			}
			err = p.Transfer(arg)
		case "conference", "c":
			if arg == "" {
				fmt.Println("usage: conference <target>")
				continue
			}
			err = p.Conference(arg)
		case "history":
			printHistory(hist)
		case "clear":
			err = hist.Clear()
		case "status":
			printStatus(p)
		case "help", "?":
			printHelp()
		case "quit", "exit", "q":
			return
		default:
			fmt.Printf("unknown command %q, try 'help'\n", cmd)
		}
		if err != nil {
			fmt.Println("error:", err)
		}
	}
}

func printHistory(hist *history.Store) {
	items := hist.List()
	if len(items) == 0 {
		fmt.Println("history is empty")
		return
	}
	for _, item := range items {
		name := item.DisplayName
		if name == "" {
			name = item.RemoteAddress
		}
		fmt.Printf("%s  %-8s  %-8s  %4ds  %s\n",
			item.StartedAt.Format("2006-01-02 15:04:05"),
			item.Direction, item.Outcome, item.DurationSeconds, name)
	}
}

func printStatus(p *phone.Phone) {
	fmt.Printf("connected=%v registered=%v\n", p.IsConnected(), p.IsRegistered())
	sess := p.ActiveCall()
	if sess == nil {
		fmt.Println("no active call")
		return
	}
	fmt.Printf("call %s %s %s state=%s muted=%v hold=%v\n",
		sess.ID, sess.Direction, sess.RemoteAddress, sess.State, sess.IsMuted, sess.IsOnHold)
}

func printHelp() {
	fmt.Print(`commands:
  dial <target>        place a call
  answer               accept the ringing call
  decline              reject the ringing call
  hangup               end the current call
  mute                 toggle microphone mute
  hold                 toggle hold
  digit <symbol>       send one DTMF digit
  transfer <target>    blind transfer via feature code
  conference <target>  start a conference via feature code
  history              list recent calls
  clear                clear call history
  status               show connection and call state
  quit                 exit
`)
}

func flagUsageHint() {
	fmt.Fprintln(os.Stderr, "example: softphone -extension 1001 -password secret -server pbx.example.com")
}
