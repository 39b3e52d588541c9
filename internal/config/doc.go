// Package config loads the flashdetail TOML configuration.
//
// Lookup order: an explicit path, then $FLASHDETAIL_CONFIG, then
// ~/.config/flashdetail/config.toml, then ./flashdetail.toml. A missing file
// yields the defaults. Endpoint edits made at runtime are written back with
// Save.
package config
