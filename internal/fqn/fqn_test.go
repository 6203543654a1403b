package fqn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleID(t *testing.T) {
	cases := map[string]string{
		"cmd/server/main.go":     "cmd.server.main",
		"pkg/orders/__init__.py": "pkg.orders",
		"web/src/index.ts":       "web.src",
		"src/net/mod.rs":         "src.net",
		"index.js":               "index",
		"engine.cpp":             "engine",
		"./src/game/engine.ixx":  "src.game.engine",
	}
	for in, want := range cases {
		assert.Equal(t, want, ModuleID(in), "ModuleID(%q)", in)
	}
}

func TestFolderID(t *testing.T) {
	assert.Equal(t, "internal.store", FolderID("internal/store/"))
	assert.Empty(t, FolderID("."))
}
