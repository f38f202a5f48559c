package relay

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/tauraamui/zedcv/pkg/log"
)

//go:embed web/*.html
var webFS embed.FS

var pages = template.Must(template.ParseFS(webFS, "web/*.html"))

const segmentMillis = 1000

type pageData struct {
	Title         string
	UploadPath    string
	ViewerPath    string
	StreamPath    string
	CapturePath   string
	SegmentMillis int
}

func defaultPageData() pageData {
	return pageData{
		Title:         "zedcv",
		UploadPath:    uploadPath,
		ViewerPath:    viewerPath,
		StreamPath:    streamPath,
		CapturePath:   capturePath,
		SegmentMillis: segmentMillis,
	}
}

func renderPage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, http.MethodGet)
			return
		}

		var buf bytes.Buffer
		if err := pages.ExecuteTemplate(&buf, name, defaultPageData()); err != nil {
			log.Error("Unable to render page %s: %v", name, err)
			http.Error(w, "Unable to render page", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = buf.WriteTo(w)
	}
}
