package config

import (
	"github.com/tauraamui/zedcv/internal/config"
	"github.com/tauraamui/zedcv/pkg/configdef"
)

type Creator interface {
	configdef.Creator
}

func DefaultCreator() Creator {
	return config.DefaultCreator()
}
