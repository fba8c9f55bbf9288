// Package web embeds the chat page assets for single-binary distribution.
package web

import "embed"

// Assets contains the static chat UI served on unmatched routes.
//
//go:embed all:static
var Assets embed.FS
