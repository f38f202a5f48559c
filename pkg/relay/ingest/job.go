package ingest

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/tauraamui/xerror"
	"github.com/tauraamui/zedcv/pkg/log"
)

var fs afero.Fs = afero.NewOsFs()

// Job is one uploaded video segment waiting for, or going through, frame
// extraction. It owns a temporary copy of the upload until Release.
type Job struct {
	ID       string
	Filename string
	Path     string
	Size     int64
	Created  time.Time
}

// NewJob copies the upload held in r to a new temporary file under tempDir,
// an empty tempDir means the OS temp directory.
func NewJob(tempDir, filename string, r io.Reader) (*Job, error) {
	if len(tempDir) == 0 {
		tempDir = os.TempDir()
	}
	if err := fs.MkdirAll(tempDir, os.ModePerm|os.ModeDir); err != nil {
		return nil, xerror.Errorf("unable to create upload temp dir: %w", err)
	}

	id := uuid.NewString()
	file, err := afero.TempFile(fs, tempDir, "zedcv-"+id+"-*"+filepath.Ext(filename))
	if err != nil {
		return nil, xerror.Errorf("unable to create upload temp file: %w", err)
	}

	job := Job{
		ID:       id,
		Filename: filename,
		Path:     file.Name(),
		Created:  time.Now(),
	}

	size, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		job.Release()
		return nil, xerror.Errorf("unable to store upload %s: %w", filename, err)
	}
	job.Size = size

	return &job, nil
}

// Release deletes the job's temporary file, it is safe to call repeatedly.
func (j *Job) Release() {
	if err := fs.Remove(j.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("Unable to remove upload temp file [%s]: %v", j.Path, err)
	}
}
