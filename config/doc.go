// Package config loads process settings from defaults, an optional TOML
// file and CMDMESH_* environment variables, in that order of precedence.
//
//	prefixes = ["pf>", "pf;"]
//	bot_id = "466378653216014359"
//	log_level = "debug"
//	timeout = "10s"
package config
