package configdef

import (
	"errors"
	"fmt"

	"gopkg.in/dealancer/validate.v2"
)

const (
	BackendOpenCV = "opencv"
	BackendGIF    = "gif"
)

type Values struct {
	Debug                bool   `json:"debug"`
	Host                 string `json:"host"`
	Port                 int    `json:"port" validate:"gte=1 & lte=65535"`
	TLSCert              string `json:"tls_cert"`
	TLSKey               string `json:"tls_key"`
	VideoBackend         string `json:"video_backend" validate:"one_of=opencv,gif"`
	BufferCapacity       int    `json:"buffer_capacity" validate:"gte=1 & lte=1000"`
	FrameWidth           int    `json:"frame_width" validate:"gte=1 & lte=7680"`
	FrameHeight          int    `json:"frame_height" validate:"gte=1 & lte=4320"`
	JPEGQuality          int    `json:"jpeg_quality" validate:"gte=1 & lte=100"`
	MaxConcurrentUploads int    `json:"max_concurrent_uploads" validate:"gte=0"`
	MaxUploadBytes       int64  `json:"max_upload_bytes" validate:"gte=1"`
	TempDir              string `json:"temp_dir"`
	SyncDecode           bool   `json:"sync_decode"`
	IdleFrameSeconds     int    `json:"idle_frame_seconds" validate:"gte=0 & lte=3600"`
}

// Defaults is the configuration a fresh setup writes to disk.
func Defaults() Values {
	v := Values{}
	v.ApplyDefaults()
	return v
}

// ApplyDefaults fills every unset field which has a non zero default.
func (v *Values) ApplyDefaults() {
	if len(v.Host) == 0 {
		v.Host = "0.0.0.0"
	}
	if v.Port == 0 {
		v.Port = 8080
	}
	if len(v.VideoBackend) == 0 {
		v.VideoBackend = BackendOpenCV
	}
	if v.BufferCapacity == 0 {
		v.BufferCapacity = 10
	}
	if v.FrameWidth == 0 {
		v.FrameWidth = 1920
	}
	if v.FrameHeight == 0 {
		v.FrameHeight = 1080
	}
	if v.JPEGQuality == 0 {
		v.JPEGQuality = 95
	}
	if v.MaxUploadBytes == 0 {
		v.MaxUploadBytes = 64 << 20
	}
}

// Addr is the listen address in host:port form.
func (v Values) Addr() string {
	return fmt.Sprintf("%s:%d", v.Host, v.Port)
}

// TLSEnabled reports whether both halves of the key pair are configured.
func (v Values) TLSEnabled() bool {
	return len(v.TLSCert) > 0 && len(v.TLSKey) > 0
}

func (v Values) RunValidate() error {
	if err := validate.Validate(&v); err != nil {
		return err
	}
	return v.Validate()
}

func (v Values) Validate() error {
	const validationErrorHeader = "validation failed: %w"
	if (len(v.TLSCert) == 0) != (len(v.TLSKey) == 0) {
		return fmt.Errorf(validationErrorHeader, errors.New("tls_cert and tls_key must be set together"))
	}
	return nil
}
