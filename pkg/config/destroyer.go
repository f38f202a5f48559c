package config

import (
	"github.com/tauraamui/zedcv/internal/config"
	"github.com/tauraamui/zedcv/pkg/configdef"
)

type Destroyer interface {
	configdef.Destroyer
}

func DefaultDestroyer() Destroyer {
	return config.DefaultDestroyer()
}
