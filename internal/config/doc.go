// Package config loads, normalizes, and validates embymerge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file when present, and honours
// environment values such as EMBY_BASE_URL, EMBY_API_KEY, IGNORE_PATHS, and
// MERGE_ON_STARTUP. The Config type centralizes every knob the daemon and CLI
// need so the Emby connection, merge policy, and log layout are discovered in
// one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors. The
// returned Config is treated as immutable once the process has started.
package config
