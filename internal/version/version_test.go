package version

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetBuildInfo(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	defer func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime }()

	Version = "v1.2.0"
	GitCommit = "abcdef1234567"
	BuildTime = "2026-01-02T03:04:05Z"

	info := GetBuildInfo()
	assert.Equal(t, "v1.2.0", info.Version)
	assert.Equal(t, "abcdef1234567", info.GitCommit)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestBuildInfoString(t *testing.T) {
	assert.Equal(t, "coco dev", (&BuildInfo{Version: "dev", GitCommit: "unknown"}).String())
	assert.Equal(t, "coco v1.0.0 (abcdef1)", (&BuildInfo{Version: "v1.0.0", GitCommit: "abcdef1234"}).String())
	assert.Equal(t, "coco v1.0.0 (abcdef1) (dirty)", (&BuildInfo{Version: "v1.0.0", GitCommit: "abcdef1", Dirty: true}).String())
}

func TestParseBuildTime(t *testing.T) {
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.False(t, parseBuildTime("2026-01-02T03:04:05Z").IsZero())
}
