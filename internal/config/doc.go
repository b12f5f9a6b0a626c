// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and the model catalog.
//
// Configuration is TOML (~/.loom/config.toml) with environment variable
// overrides for secrets. The model catalog — which models exist, whether
// they may use tools, and how reasoning requests are routed — lives here
// and is passed explicitly to the components that need it; there is no
// global registry.
//
// # Key Types
//
//   - Config: the full configuration with defaults and validation
//   - Catalog: model lookup and reasoning-aware model id resolution
//   - ModelSpec: one catalog entry
//   - Watcher: fsnotify-based config hot reload
package config
