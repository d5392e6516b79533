package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fuomag9/checkpulse/internal/config"
)

// Sender delivers a text message to a recipient
type Sender interface {
	Send(ctx context.Context, recipient, message string) error
}

// Provider defines the interface for all notification providers
type Provider interface {
	// Name returns the unique identifier for this provider
	Name() string

	// Send delivers one message using the provider settings in cfg
	Send(ctx context.Context, cfg *config.NotificationConfig, msg *Message) error

	// Validate validates the provider configuration
	Validate(cfg *config.NotificationConfig) error
}

// Message represents a notification message to be sent
type Message struct {
	Recipient string
	Body      string
	Time      time.Time
}

// Registry holds all registered notification providers
var (
	providers = make(map[string]Provider)
	mu        sync.RWMutex
)

// RegisterProvider registers a new notification provider
func RegisterProvider(provider Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[provider.Name()] = provider
}

// GetProvider returns a provider by name
func GetProvider(name string) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	provider, ok := providers[name]
	return provider, ok
}

// providerSender binds a provider to its configuration
type providerSender struct {
	provider Provider
	cfg      config.NotificationConfig
}

// NewSender returns a Sender backed by the provider named in cfg
func NewSender(cfg config.NotificationConfig) (Sender, error) {
	provider, ok := GetProvider(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown notification provider: %s", cfg.Provider)
	}
	if err := provider.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", cfg.Provider, err)
	}
	return &providerSender{provider: provider, cfg: cfg}, nil
}

func (s *providerSender) Send(ctx context.Context, recipient, message string) error {
	return s.provider.Send(ctx, &s.cfg, &Message{
		Recipient: recipient,
		Body:      message,
		Time:      time.Now(),
	})
}
