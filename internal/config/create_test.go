package config

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/tauraamui/zedcv/pkg/configdef"
	"github.com/tauraamui/zedcv/pkg/log"
)

type CreateConfigTestSuite struct {
	suite.Suite
	is                   *is.I
	configCreateResolver configdef.CreateResolver
	fs                   afero.Fs
	envRef               string
}

func (suite *CreateConfigTestSuite) SetupSuite() {
	log.SetLevel("silent")
	suite.is = is.New(suite.T())
	suite.envRef = os.Getenv(configEnvKey)
	os.Setenv(configEnvKey, "/testroot/zedcv/config.json")
	suite.fs = afero.NewMemMapFs()
	suite.configCreateResolver = DefaultCreateResolver()

	// use in memory FS in implementation for tests
	fs = suite.fs
}

func (suite *CreateConfigTestSuite) TearDownSuite() {
	log.SetLevel("warn")
	os.Setenv(configEnvKey, suite.envRef)
	fs = afero.NewOsFs()
}

func (suite *CreateConfigTestSuite) TearDownTest() {
	suite.is.NoErr(suite.fs.RemoveAll("/"))
}

func (suite *CreateConfigTestSuite) TestConfigCreate() {
	require.NoError(suite.T(), suite.configCreateResolver.Create())
	loadedConfig, err := suite.configCreateResolver.Resolve()

	assert.NoError(suite.T(), err)
	assert.EqualValues(suite.T(), configdef.Defaults(), loadedConfig)
}

func (suite *CreateConfigTestSuite) TestWrittenDefaultsMatchConfigDefaults() {
	require.NoError(suite.T(), suite.configCreateResolver.Create())
	data, err := afero.ReadFile(suite.fs, "/testroot/zedcv/config.json")
	require.NoError(suite.T(), err)

	written := configdef.Values{}
	require.NoError(suite.T(), json.Unmarshal(data, &written))
	assert.Equal(suite.T(), configdef.Defaults(), written)
	assert.Equal(suite.T(), configdef.BackendOpenCV, written.VideoBackend)
}

func (suite *CreateConfigTestSuite) TestConfigCreateFailsDueToAlreadyExisting() {
	suite.is.NoErr(suite.configCreateResolver.Create())
	err := suite.configCreateResolver.Create()
	suite.is.Equal(err.Error(), "config file already exists")
	suite.is.True(errors.Is(err, configdef.ErrConfigAlreadyExists))
}

func (suite *CreateConfigTestSuite) TestConfigDestroyRemovesCreatedFile() {
	suite.is.NoErr(suite.configCreateResolver.Create())
	suite.is.NoErr(DefaultDestroyer().Destroy())

	_, err := suite.fs.Stat("/testroot/zedcv/config.json")
	suite.is.True(errors.Is(err, os.ErrNotExist))
}

func (suite *CreateConfigTestSuite) TestConfigDestroyWithoutFileIsNoop() {
	suite.is.NoErr(DefaultDestroyer().Destroy())
}

func TestCreateConfigTestSuite(t *testing.T) {
	suite.Run(t, &CreateConfigTestSuite{})
}
