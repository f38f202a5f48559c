package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/spf13/afero"
	"github.com/tauraamui/zedcv/pkg/configdef"
	"github.com/tauraamui/zedcv/pkg/log"
)

func TestWatchReloadsConfigOnWrite(t *testing.T) {
	is := is.New(t)
	log.SetLevel("silent")
	defer func() { log.SetLevel("warn") }()

	fs = afero.NewOsFs()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	is.NoErr(os.WriteFile(path, []byte(`{"jpeg_quality": 80}`), 0666))
	t.Setenv(configEnvKey, path)

	changes := make(chan configdef.Values, 4)
	ctx, cancel := context.WithCancel(context.Background())
	stopped, err := DefaultWatcher().Watch(ctx, func(v configdef.Values) { changes <- v })
	is.NoErr(err)

	is.NoErr(os.WriteFile(path, []byte(`{"jpeg_quality": 40, "debug": true}`), 0666))

	select {
	case v := <-changes:
		is.Equal(v.JPEGQuality, 40)
		is.True(v.Debug)
	case <-time.After(3 * time.Second):
		t.Fatal("test timeout 3s limit exceeded")
	}

	cancel()
	<-stopped
}

func TestWatchIgnoresInvalidConfig(t *testing.T) {
	is := is.New(t)
	log.SetLevel("silent")
	defer func() { log.SetLevel("warn") }()

	fs = afero.NewOsFs()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	is.NoErr(os.WriteFile(path, []byte(`{}`), 0666))
	t.Setenv(configEnvKey, path)

	changes := make(chan configdef.Values, 4)
	ctx, cancel := context.WithCancel(context.Background())
	stopped, err := watch(ctx, func(v configdef.Values) { changes <- v })
	is.NoErr(err)

	is.NoErr(os.WriteFile(path, []byte(`{"jpeg_quality": 400}`), 0666))

	select {
	case <-changes:
		t.Fatal("invalid config must not be applied")
	case <-time.After(300 * time.Millisecond):
	}

	cancel()
	<-stopped
}
