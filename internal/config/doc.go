// Package config handles configuration loading for solace-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	llm:
//	  base_url: "${SOLACE_LLM_URL}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	workers:
//	  poll_interval: "500ms"
//	chat:
//	  session_ttl: "24h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/solace/gateway.db"
//
// Model endpoint:
//
//	llm:
//	  base_url: "http://localhost:11434"
//	  model: "llama3.1"
//
// Analysis workers:
//
//	workers:
//	  pool_size: 2
//	  poll_interval: "500ms"
//
// Chat behavior:
//
//	chat:
//	  memory_window: 30
//	  session_ttl: "24h"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
