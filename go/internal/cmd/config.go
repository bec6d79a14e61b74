package main

import (
	"github.com/mcdev12/pooldraft/go/internal/config"
	"github.com/mcdev12/pooldraft/go/internal/draft/gateway"
	"github.com/mcdev12/pooldraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/pooldraft/go/internal/draft/outbox"
)

// Component settings derived from the process config, for the embedded mode.

func relayConfig(cfg *config.Config) outbox.Config {
	relayCfg := outbox.DefaultConfig()
	relayCfg.NotifyChannel = cfg.Outbox.NotifyChannel
	relayCfg.FallbackInterval = cfg.Outbox.FallbackInterval
	relayCfg.BatchSize = cfg.Outbox.BatchSize
	relayCfg.MaxRetries = cfg.Outbox.MaxRetries
	relayCfg.RetryDelay = cfg.Outbox.RetryDelay
	return relayCfg
}

func orchestratorConfig(cfg *config.Config) orchestrator.Config {
	orchCfg := orchestrator.DefaultConfig()
	orchCfg.Workers = cfg.Orchestrator.Workers
	orchCfg.ConsumerName = cfg.Orchestrator.ConsumerName
	return orchCfg
}

func gatewayConfig(cfg *config.Config) gateway.Config {
	gwCfg := gateway.DefaultConfig()
	gwCfg.ConnectionConfig.WriteTimeout = cfg.Gateway.WriteTimeout
	gwCfg.ConnectionConfig.ReadTimeout = cfg.Gateway.ReadTimeout
	gwCfg.ConnectionConfig.PingInterval = cfg.Gateway.PingInterval
	gwCfg.CORSOrigins = cfg.Server.CORSOrigins
	return gwCfg
}
