package domain

import (
	"github.com/google/wire"

	"github.com/janhq/jan-chat/internal/config"
	"github.com/janhq/jan-chat/internal/domain/chat"
	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/domain/generation"
)

// ServiceProvider provides all domain services
var ServiceProvider = wire.NewSet(
	// Generation runtime
	ProvideGenerationConfig,
	generation.NewRuntime,
	ProvideSweeper,
	wire.Bind(new(chat.Generator), new(*generation.Runtime)),

	// Chat use cases
	chat.NewChatService,
)

func ProvideGenerationConfig(cfg *config.Config) generation.Config {
	return generation.Config{
		MailboxSize:        cfg.GenerationMailboxSize,
		IdleTimeout:        cfg.GenerationIdleTimeout,
		SendTimeout:        cfg.GenerationSendTimeout,
		LeaseRenewInterval: cfg.OwnershipLeaseTTL / 3,
	}
}

func ProvideSweeper(cfg *config.Config, store conversation.Store, runtime *generation.Runtime) *generation.Sweeper {
	return generation.NewSweeper(store, runtime, cfg.SweepStaleAfter)
}
