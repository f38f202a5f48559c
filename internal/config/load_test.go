package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tauraamui/zedcv/pkg/configdef"
	"github.com/tauraamui/zedcv/pkg/log"
	"github.com/tauraamui/zedcv/pkg/relayerr"
)

type LoadConfigTestSuite struct {
	suite.Suite
	configResolver configdef.Resolver
	fs             afero.Fs
	path           string
	configFile     afero.File
	envRef         string
}

func (suite *LoadConfigTestSuite) SetupSuite() {
	log.SetLevel("silent")
	suite.envRef = os.Getenv(configEnvKey)
	os.Setenv(configEnvKey, "/testroot/zedcv/config.json")
	suite.fs = afero.NewMemMapFs()
	suite.configResolver = DefaultResolver()

	// use in memory FS in implementation for tests
	fs = suite.fs
}

func (suite *LoadConfigTestSuite) TearDownSuite() {
	log.SetLevel("warn")
	os.Setenv(configEnvKey, suite.envRef)
	fs = afero.NewOsFs()
}

func (suite *LoadConfigTestSuite) SetupTest() {
	path, err := resolveConfigPath()
	require.NoError(suite.T(), err)
	require.NoError(suite.T(), suite.fs.MkdirAll(filepath.Dir(path), os.ModeDir|os.ModePerm))
	suite.path = path

	configFile, err := suite.fs.Create(path)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), configFile)

	suite.configFile = configFile

	suite.overwriteTestConfig(
		`{
			"debug": true,
			"port": 9000,
			"video_backend": "gif",
			"buffer_capacity": 4,
			"max_concurrent_uploads": 2
		}`,
	)
}

func (suite *LoadConfigTestSuite) overwriteTestConfig(config string) {
	require.NoError(suite.T(), suite.configFile.Truncate(0))
	_, err := suite.configFile.Seek(0, 0)
	require.NoError(suite.T(), err)
	_, err = suite.configFile.WriteString(config)
	assert.NoError(suite.T(), err)
}

func (suite *LoadConfigTestSuite) TearDownTest() {
	require.NoError(suite.T(), suite.configFile.Close())
	suite.fs.Remove(suite.path)
}

func (suite *LoadConfigTestSuite) TestLoadConfig() {
	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)

	assert.True(suite.T(), config.Debug)
	assert.Equal(suite.T(), 9000, config.Port)
	assert.Equal(suite.T(), configdef.BackendGIF, config.VideoBackend)
	assert.Equal(suite.T(), 4, config.BufferCapacity)
	assert.Equal(suite.T(), 2, config.MaxConcurrentUploads)
}

func (suite *LoadConfigTestSuite) TestLoadConfigAppliesDefaultsForMissingFields() {
	config, err := suite.configResolver.Resolve()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "0.0.0.0", config.Host)
	assert.Equal(suite.T(), 1920, config.FrameWidth)
	assert.Equal(suite.T(), 1080, config.FrameHeight)
	assert.Equal(suite.T(), 95, config.JPEGQuality)
}

func (suite *LoadConfigTestSuite) TestLoadConfigWithInvalidJSON() {
	suite.overwriteTestConfig(`{"port": 9000,`)
	_, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	assert.True(suite.T(), errors.Is(err, relayerr.ErrConfig))
	assert.Contains(suite.T(), err.Error(), "parsing configuration error")
}

func (suite *LoadConfigTestSuite) TestLoadConfigFailsValidation() {
	suite.overwriteTestConfig(`{"jpeg_quality": 101}`)
	_, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	assert.True(suite.T(), errors.Is(err, relayerr.ErrConfig))
	assert.Contains(suite.T(), err.Error(), `"JPEGQuality"`)
}

func (suite *LoadConfigTestSuite) TestLoadConfigMissingFile() {
	require.NoError(suite.T(), suite.fs.Remove(suite.path))
	_, err := suite.configResolver.Resolve()
	require.Error(suite.T(), err)
	assert.True(suite.T(), errors.Is(err, os.ErrNotExist))
}

func TestLoadConfigTestSuite(t *testing.T) {
	suite.Run(t, &LoadConfigTestSuite{})
}

func TestResolveConfigPathFromEnv(t *testing.T) {
	t.Setenv(configEnvKey, "/etc/zedcv/config.json")
	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/zedcv/config.json", path)
}

func TestResolveConfigPathFromUserConfigDir(t *testing.T) {
	t.Setenv(configEnvKey, "")
	userConfigDirRef := userConfigDir
	userConfigDir = func() (string, error) { return "/home/test/.config", nil }
	defer func() { userConfigDir = userConfigDirRef }()

	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/home/test/.config/tacusci/zedcv/config.json", path)
}

func TestResolveConfigPathFailsWithoutUserConfigDir(t *testing.T) {
	t.Setenv(configEnvKey, "")
	userConfigDirRef := userConfigDir
	userConfigDir = func() (string, error) { return "", errors.New("$HOME is not defined") }
	defer func() { userConfigDir = userConfigDirRef }()

	_, err := resolveConfigPath()
	require.Error(t, err)
	assert.Equal(t, "unable to resolve config.json location: $HOME is not defined", err.Error())
}
