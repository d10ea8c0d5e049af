package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestInfo(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })
	Version = "v0.3.0"

	info := Info()
	assert.Contains(t, info, "sectutor v0.3.0")
	assert.Contains(t, info, runtime.Version())
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
}
