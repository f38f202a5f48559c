package config

import (
	"github.com/tauraamui/zedcv/internal/config"
	"github.com/tauraamui/zedcv/pkg/configdef"
)

type Watcher interface {
	configdef.Watcher
}

func DefaultWatcher() Watcher {
	return config.DefaultWatcher()
}
