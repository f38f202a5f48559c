package configdef_test

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
	"github.com/tauraamui/zedcv/pkg/configdef"
)

func TestValidateEmptyConfigWithDefaultsPasses(t *testing.T) {
	is := is.New(t)
	config := configdef.Values{}
	is.NoErr(json.Unmarshal([]byte(`{}`), &config))
	config.ApplyDefaults()
	is.NoErr(config.RunValidate())
}

func TestDefaultsMatchRelaySettings(t *testing.T) {
	is := is.New(t)
	config := configdef.Defaults()
	is.Equal(config.Addr(), "0.0.0.0:8080")
	is.Equal(config.BufferCapacity, 10)
	is.Equal(config.FrameWidth, 1920)
	is.Equal(config.FrameHeight, 1080)
	is.Equal(config.VideoBackend, configdef.BackendOpenCV)
	is.Equal(config.MaxConcurrentUploads, 0)
	is.True(!config.TLSEnabled())
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	is := is.New(t)
	body := `{
			"port": 9443,
			"buffer_capacity": 3,
			"video_backend": "gif",
			"jpeg_quality": 50
		}`
	config := configdef.Values{}
	is.NoErr(json.Unmarshal([]byte(body), &config))
	config.ApplyDefaults()
	is.Equal(config.Port, 9443)
	is.Equal(config.BufferCapacity, 3)
	is.Equal(config.VideoBackend, configdef.BackendGIF)
	is.Equal(config.JPEGQuality, 50)
	is.NoErr(config.RunValidate())
}

func TestValidateFailsForUnknownVideoBackend(t *testing.T) {
	is := is.New(t)
	config := configdef.Values{VideoBackend: "ffmpeg"}
	config.ApplyDefaults()
	is.Equal(config.RunValidate().Error(), `Validation error in field "VideoBackend" of type "string" using validator "one_of=opencv,gif"`)
}

func TestValidateFailsForBufferCapacityOverLimit(t *testing.T) {
	is := is.New(t)
	config := configdef.Values{BufferCapacity: 5000}
	config.ApplyDefaults()
	is.Equal(config.RunValidate().Error(), `Validation error in field "BufferCapacity" of type "int" using validator "lte=1000"`)
}

func TestValidateFailsForNegativeUploadCap(t *testing.T) {
	is := is.New(t)
	config := configdef.Values{MaxConcurrentUploads: -1}
	config.ApplyDefaults()
	is.Equal(config.RunValidate().Error(), `Validation error in field "MaxConcurrentUploads" of type "int" using validator "gte=0"`)
}

func TestValidateFailsForHalfConfiguredTLS(t *testing.T) {
	is := is.New(t)
	config := configdef.Values{TLSCert: "ssl/server.crt"}
	config.ApplyDefaults()
	is.Equal(config.RunValidate().Error(), "validation failed: tls_cert and tls_key must be set together")
}

func TestTLSEnabledWithKeyPair(t *testing.T) {
	is := is.New(t)
	config := configdef.Values{TLSCert: "ssl/server.crt", TLSKey: "ssl/server.key"}
	config.ApplyDefaults()
	is.NoErr(config.RunValidate())
	is.True(config.TLSEnabled())
}
