package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/folio-assist/backend/internal/config"
	"github.com/zhouzirui/folio-assist/backend/internal/logging"
	"github.com/zhouzirui/folio-assist/backend/internal/model/chat"
	"github.com/zhouzirui/folio-assist/backend/internal/service/ai"
	"github.com/zhouzirui/folio-assist/backend/internal/widget"
)

// widgetprobe drives a local widget from stdin and prints its events, which is
// handy for checking a provider configuration without a browser.
func main() {
	configPath := flag.String("config", os.Getenv("FOLIO_CONFIG"), "optional TOML config file")
	width := flag.Int("width", 1280, "viewport width reported with each Enter key")
	delay := flag.Duration("delay", -1, "override the thinking delay")
	wait := flag.Duration("wait", 90*time.Second, "how long to wait for pending turns on EOF")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("[config] failed to load .env, using process environment only")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, true)

	ctx := context.Background()
	var completer widget.Completer
	if svc, err := ai.NewService(ctx, cfg); err != nil {
		log.Warn().Err(err).Msg("[probe] no provider, every turn will fall back")
	} else {
		completer = svc
	}

	settings := cfg.Settings.WidgetSettings()
	if *delay >= 0 {
		settings.ThinkingDelay = *delay
	}

	w := widget.New(fmt.Sprintf("probe-%d", time.Now().UnixNano()), completer, settings)
	w.Show()

	events, unsubscribe := w.Subscribe(0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			printEvent(ev)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		w.Input(line, 0)
		result := w.KeyDown(ctx, widget.KeyEvent{Key: settings.SubmitKey, ViewportWidth: *width})
		if result.Action != widget.KeySubmit {
			fmt.Printf("(key: %s)\n", result.Action)
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()
	if err := w.WaitContext(waitCtx); err != nil {
		fmt.Fprintf(os.Stderr, "pending turns did not settle: %v\n", err)
	}
	unsubscribe()
	<-done
}

func printEvent(ev widget.Event) {
	switch ev.Type {
	case widget.EventAppended, widget.EventUpdated:
		if ev.Entry == nil {
			return
		}
		marker := ">"
		if ev.Entry.Kind == chat.Incoming {
			marker = "<"
		}
		suffix := ""
		if ev.Entry.Error {
			suffix = " [error]"
		}
		fmt.Printf("%s #%d %s%s\n", marker, ev.Entry.TurnSeq, strings.TrimSpace(ev.Entry.Text), suffix)
	}
}
