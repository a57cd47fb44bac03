// Package configs provides embedded configuration templates for cantor.
//
// Templates are embedded at build time so `cantor config init` works the
// same from a source build and a binary release.
//
// Configuration hierarchy (see internal/config/config.go Load()):
//  1. Hardcoded defaults (internal/config/config.go NewConfig())
//  2. User config (~/.config/cantor/config.yaml)
//  3. Project config (.cantor.yaml)
//  4. Environment variables (CANTOR_*)
package configs

import _ "embed"

// UserConfigTemplate is written by `cantor config init` to
// ~/.config/cantor/config.yaml. Its active values equal the defaults.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
