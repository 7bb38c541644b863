package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dooshek/ttsclient/internal/tts"
	"github.com/dooshek/ttsclient/internal/types"
	"github.com/fatih/color"
)

const appID = 1

type command struct {
	name  string
	usage string
	help  string
	run   func(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error
}

var commands []command

func init() {
	commands = []command{
		{"speak", "speak <text>", "Speak text and wait until it finishes", runSpeak},
		{"voices", "voices [language]", "List voices, optionally for one language", runVoices},
		{"config", "config [get|set key=value...]", "Show or change voice, language, volume and rate", runConfig},
		{"state", "state", "Show whether TTS is enabled", runState},
		{"enable", "enable", "Enable TTS", runEnable(true)},
		{"disable", "disable", "Disable TTS", runEnable(false)},
	}
}

func run(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error {
	for _, c := range commands {
		if c.name == args[0] {
			return c.run(ctx, client, args[1:], out, timeout)
		}
	}
	return fmt.Errorf("unknown command %q", args[0])
}

// connectionPrinter reports service level notifications on the terminal
type connectionPrinter struct {
	out io.Writer
}

func (p *connectionPrinter) OnTTSServerConnected() {
	color.New(color.FgGreen).Fprintln(p.out, "Connected to TTS service")
}

func (p *connectionPrinter) OnTTSStateChanged(enabled bool) {}

func (p *connectionPrinter) OnVoiceChanged(voice string) {
	fmt.Fprintf(p.out, "Voice changed to %s\n", voice)
}

// speechWaiter closes done when the speech it waits for reaches a terminal event
type speechWaiter struct {
	speechID uint32
	out      io.Writer

	once    sync.Once
	done    chan struct{}
	outcome string
}

func newSpeechWaiter(speechID uint32, out io.Writer) *speechWaiter {
	return &speechWaiter{speechID: speechID, out: out, done: make(chan struct{})}
}

func (w *speechWaiter) finish(speechID uint32, outcome string) {
	if speechID != w.speechID {
		return
	}
	w.once.Do(func() {
		w.outcome = outcome
		close(w.done)
	})
}

func (w *speechWaiter) OnTTSSessionCreated(appID, sessionID uint32) {}

func (w *speechWaiter) OnSpeechStart(appID, sessionID uint32, data types.SpeechData) {
	color.New(color.FgCyan).Fprintln(w.out, "Speaking...")
}

func (w *speechWaiter) OnSpeechPause(appID, sessionID, speechID uint32)  {}
func (w *speechWaiter) OnSpeechResume(appID, sessionID, speechID uint32) {}

func (w *speechWaiter) OnSpeechCancelled(appID, sessionID, speechID uint32) {
	w.finish(speechID, "cancelled")
}

func (w *speechWaiter) OnSpeechInterrupted(appID, sessionID, speechID uint32) {
	w.finish(speechID, "interrupted")
}

func (w *speechWaiter) OnNetworkError(appID, sessionID, speechID uint32) {
	w.finish(speechID, "network error")
}

func (w *speechWaiter) OnPlaybackError(appID, sessionID, speechID uint32) {
	w.finish(speechID, "playback error")
}

func (w *speechWaiter) OnSpeechComplete(appID, sessionID uint32, data types.SpeechData) {
	w.finish(data.ID, "complete")
}

func runSpeak(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("speak needs some text")
	}

	const speechID = 1
	waiter := newSpeechWaiter(speechID, out)
	sessionID, err := client.CreateSession(ctx, appID, "ttsctl", waiter)
	if err != nil {
		return err
	}
	defer client.DestroySession(sessionID)

	if !client.IsTTSEnabled(ctx, true) {
		return types.ErrNotEnabled
	}
	if err := client.Speak(ctx, sessionID, types.SpeechData{ID: speechID, Text: text}); err != nil {
		return err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-waiter.done:
		if waiter.outcome != "complete" {
			return fmt.Errorf("speech %s", waiter.outcome)
		}
		color.New(color.FgGreen).Fprintln(out, "Done")
		return nil
	case <-timer.C:
		_ = client.Abort(context.Background(), sessionID, true)
		return fmt.Errorf("speech did not finish within %s", timeout)
	case <-ctx.Done():
		_ = client.Abort(context.Background(), sessionID, true)
		return ctx.Err()
	}
}

func runVoices(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error {
	language := ""
	if len(args) > 0 {
		language = args[0]
	}
	voices, err := client.ListVoices(ctx, language)
	if err != nil {
		return err
	}
	for _, voice := range voices {
		fmt.Fprintln(out, voice)
	}
	return nil
}

func runConfig(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error {
	if len(args) == 0 || args[0] == "get" {
		current, err := client.GetTTSConfiguration(ctx)
		if err != nil {
			return err
		}
		printConfiguration(out, current)
		return nil
	}
	if args[0] != "set" {
		return fmt.Errorf("unknown config action %q", args[0])
	}

	current, err := client.GetTTSConfiguration(ctx)
	if err != nil {
		return err
	}
	updated, err := applySettings(current, args[1:])
	if err != nil {
		return err
	}
	if err := client.SetTTSConfiguration(ctx, updated); err != nil {
		return err
	}
	printConfiguration(out, updated)
	return nil
}

// applySettings applies key=value pairs to config
func applySettings(config types.Configuration, settings []string) (types.Configuration, error) {
	if len(settings) == 0 {
		return config, fmt.Errorf("config set needs at least one key=value")
	}
	for _, setting := range settings {
		key, value, ok := strings.Cut(setting, "=")
		if !ok {
			return config, fmt.Errorf("expected key=value, got %q", setting)
		}
		switch strings.ToLower(key) {
		case "voice":
			config.Voice = value
		case "language":
			config.Language = value
		case "endpoint":
			config.EndPoint = value
		case "endpoint_secured":
			config.EndPointSecured = value
		case "volume":
			volume, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return config, fmt.Errorf("invalid volume %q: %w", value, err)
			}
			config.Volume = volume
		case "rate":
			rate, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return config, fmt.Errorf("invalid rate %q: %w", value, err)
			}
			config.Rate = uint8(rate)
		default:
			return config, fmt.Errorf("unknown config key %q", key)
		}
	}
	return config, nil
}

func printConfiguration(out io.Writer, config types.Configuration) {
	bold := color.New(color.Bold)
	bold.Fprint(out, "voice:    ")
	fmt.Fprintln(out, config.Voice)
	bold.Fprint(out, "language: ")
	fmt.Fprintln(out, config.Language)
	bold.Fprint(out, "volume:   ")
	fmt.Fprintln(out, config.Volume)
	bold.Fprint(out, "rate:     ")
	fmt.Fprintln(out, config.Rate)
}

func runState(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error {
	if client.IsTTSEnabled(ctx, true) {
		color.New(color.FgGreen).Fprintln(out, "TTS is enabled")
	} else {
		color.New(color.FgYellow).Fprintln(out, "TTS is disabled")
	}
	return nil
}

func runEnable(enable bool) func(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error {
	return func(ctx context.Context, client *tts.Client, args []string, out io.Writer, timeout time.Duration) error {
		return client.EnableTTS(ctx, enable)
	}
}
