// Package config loads settings for both shoplist binaries.
//
// The API server is configured from SHOPLIST_* environment variables
// (ServerFromEnv). The client reads a TOML file, by default
// ~/.config/shoplist/config.toml; a missing file is not an error and yields
// defaults so the CLI works out of the box:
//
//	server_url = "http://127.0.0.1:8080"
//	data_dir = "~/.local/share/shoplist"
//	request_timeout = "10s"
//	probe_interval = "15s"
//	max_probe_interval = "2m"
//	offline_flag = "~/.local/share/shoplist/offline"
//	log_level = "warn"
//	log_format = "text"
//
// Paths accept tilde expansion. offline_flag defaults to <data_dir>/offline;
// while that file exists the client treats the host as offline.
package config
