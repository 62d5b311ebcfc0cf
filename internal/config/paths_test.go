package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenFilePath_HomeRelative(t *testing.T) {
	path := TokenFilePath()
	assert.NotEmpty(t, path)
	assert.Equal(t, ".m365go-msal.json", filepath.Base(path))
}

func TestDefaultConfigDir_RespectsXDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG applies to Linux only")
	}

	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	assert.Equal(t, filepath.Join("/custom/config", appName), DefaultConfigDir())
}

func TestDefaultCacheDir_RespectsXDG(t *testing.T) {
	if runtime.GOOS != platformLinux {
		t.Skip("XDG applies to Linux only")
	}

	t.Setenv("XDG_CACHE_HOME", "/custom/cache")

	assert.Equal(t, filepath.Join("/custom/cache", appName), DefaultCacheDir())
}

func TestDefaultConfigPath_EndsWithFileName(t *testing.T) {
	path := DefaultConfigPath()
	assert.True(t, strings.HasSuffix(path, configFileName))
}
