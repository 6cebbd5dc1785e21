package app

import (
	"github.com/mfstack/mfgate/internal/environment"
	"github.com/mfstack/mfgate/internal/gate"
	"github.com/mfstack/mfgate/internal/reload"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Environment is the resolved deployment environment
	Environment *environment.EnvironmentConfig

	// Gate holds requests until every remote manifest was probed
	Gate *gate.Gate

	// Hub keeps the live reload connections of dev clients
	Hub *reload.Hub

	// Bridge turns rebuild announcements into reloads
	Bridge *reload.Bridge
}
