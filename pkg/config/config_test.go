package config_test

import (
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/zedcv/pkg/config"
)

func TestDefaultConstructorsReturnInstances(t *testing.T) {
	is := is.New(t)
	is.True(config.DefaultResolver() != nil)
	is.True(config.DefaultCreator() != nil)
	is.True(config.DefaultDestroyer() != nil)
	is.True(config.DefaultWatcher() != nil)
}
