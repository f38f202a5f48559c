package config

import (
	"github.com/tauraamui/zedcv/internal/config"
	"github.com/tauraamui/zedcv/pkg/configdef"
)

type Resolver interface {
	configdef.Resolver
}

func DefaultResolver() Resolver {
	return config.DefaultResolver()
}
