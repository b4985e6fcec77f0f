package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/adapters/credential"
	"github.com/satriahrh/voicecoach/adapters/device"
	"github.com/satriahrh/voicecoach/domain"
	"github.com/satriahrh/voicecoach/domain/entities"
	"github.com/satriahrh/voicecoach/domain/repositories"
	"github.com/satriahrh/voicecoach/internal/agent"
	"github.com/satriahrh/voicecoach/internal/config"
	"github.com/satriahrh/voicecoach/internal/persona"
	"github.com/satriahrh/voicecoach/usecase"
)

const help = `commands:
  personas       list personas
  persona <id>   select a persona
  connect        start a conversation
  disconnect     end the conversation
  status         show connection and mic status
  quit           exit`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.ValidateClient(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	catalog, err := persona.Builtin()
	if err != nil {
		logger.Fatal("Failed to load personas", zap.Error(err))
	}

	audioCtx, err := device.NewContext(logger)
	if err != nil {
		logger.Fatal("Failed to initialize audio", zap.Error(err))
	}
	defer audioCtx.Close()

	// Initialize adapters
	var issuer repositories.CredentialIssuer
	if cfg.TokenURL != "" {
		issuer = credential.NewHTTPIssuer(cfg.TokenURL, cfg.OperatorToken, cfg.RequestTimeout, logger)
	} else {
		logger.Warn("TOKEN_URL not set, using DEEPGRAM_API_KEY directly")
		issuer = credential.NewStaticIssuer(cfg.DeepgramAPIKey, cfg.DeepgramProjectID)
	}
	dialer := agent.NewDialer(agent.Config{URL: cfg.AgentURL}, logger)

	controller := usecase.NewSessionController(
		issuer,
		audioCtx.Microphone(),
		audioCtx.Speaker(),
		dialer,
		catalog,
		usecase.AgentConfig{
			InputSampleRate:       cfg.InputSampleRate,
			OutputSampleRate:      cfg.OutputSampleRate,
			FrameSamples:          cfg.FrameSamples,
			PlaybackBufferSamples: cfg.PlaybackBufferSamples(),
			ListenModel:           cfg.ListenModel,
			ThinkProvider:         cfg.ThinkProvider,
			ThinkModel:            cfg.ThinkModel,
			Greeting:              cfg.Greeting,
		},
		logger,
	)
	if cfg.PersonaID != "" {
		if err := controller.SelectPersona(cfg.PersonaID); err != nil {
			logger.Fatal("Failed to select persona", zap.Error(err))
		}
	}

	view := &statusView{}
	controller.OnChange(view.render)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Printf("Persona: %s\n%s\n", controller.Persona().Name, help)
	for {
		select {
		case <-ctx.Done():
			shutdown(controller, logger)
			return
		case line, ok := <-lines:
			if !ok {
				shutdown(controller, logger)
				return
			}
			if quit := runCommand(ctx, controller, catalog, line, logger); quit {
				shutdown(controller, logger)
				return
			}
		}
	}
}

func runCommand(ctx context.Context, controller *usecase.SessionController, catalog *persona.Catalog, line string, logger *zap.Logger) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "personas":
		current := controller.Persona().ID
		for _, p := range catalog.All() {
			marker := " "
			if p.ID == current {
				marker = "*"
			}
			fmt.Printf("%s %-12s %-10s %s\n", marker, p.ID, p.Market, p.Description)
		}

	case "persona":
		if len(fields) != 2 {
			fmt.Println("usage: persona <id>")
			return false
		}
		if err := controller.SelectPersona(fields[1]); err != nil {
			fmt.Println(err)
		}

	case "connect":
		go func() {
			err := controller.Connect(ctx)
			if err != nil && !errors.Is(err, domain.ErrSessionCancelled) {
				var sessionErr *domain.SessionError
				if !errors.As(err, &sessionErr) {
					fmt.Println(err)
				}
				logger.Debug("Connect returned", zap.Error(err))
			}
		}()

	case "disconnect":
		controller.Disconnect()

	case "status":
		s := controller.Snapshot()
		fmt.Printf("status=%s mic=%s persona=%s\n", s.Status, s.Mic, s.PersonaID)
		if s.LastError != nil {
			fmt.Printf("last error: %s\n", s.LastError.Message)
		}

	case "quit", "exit":
		return true

	default:
		fmt.Println(help)
	}
	return false
}

func shutdown(controller *usecase.SessionController, logger *zap.Logger) {
	controller.Disconnect()
	controller.WaitTeardown()
	logger.Info("Coach exited")
}

// statusView prints state changes and new transcript lines
type statusView struct {
	mu         sync.Mutex
	sessionID  string
	status     entities.ConnectionStatus
	mic        entities.MicStatus
	lastErr    *domain.SessionError
	transcript int
}

func (v *statusView) render(s entities.Session) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if s.ID != v.sessionID || v.transcript > len(s.Transcript) {
		v.sessionID = s.ID
		v.transcript = 0
	}
	if s.Status != v.status {
		v.status = s.Status
		fmt.Printf("[%s]\n", s.Status)
	}
	if s.Mic != v.mic {
		v.mic = s.Mic
		if s.Status == entities.StatusConnected {
			fmt.Printf("  mic: %s\n", s.Mic)
		}
	}
	if s.LastError != nil && s.LastError != v.lastErr {
		fmt.Printf("  error: %s\n", s.LastError.Message)
	}
	v.lastErr = s.LastError
	for _, line := range s.Transcript[v.transcript:] {
		fmt.Printf("  %s: %s\n", line.Role, line.Content)
	}
	v.transcript = len(s.Transcript)
}
