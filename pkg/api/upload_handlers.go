package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/flashlightplugins/registry/pkg/async"
	"github.com/flashlightplugins/registry/pkg/httputil"
	"github.com/flashlightplugins/registry/pkg/middleware"
	"github.com/flashlightplugins/registry/pkg/registry"
)

const (
	msgSecretNotFound = "No plugin could be found that matches that secret."
	msgBadArchive     = "We couldn't find a valid info.json file in your zip."
)

// uploadResponse is the wire shape of a successful upload.
type uploadResponse struct {
	Message  string           `json:"message"`
	Plugin   *registry.Plugin `json:"plugin"`
	Secret   string           `json:"secret"`
	Approved bool             `json:"approved"`
}

// postUpload accepts a plugin submission, either as a zip_url pointing at
// an already stored archive or as a direct multipart "zip" file which is
// written to the blob store first.
func (s *Server) postUpload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req := registry.UploadRequest{
		Secret:     r.FormValue("secret"),
		ConsoleKey: r.FormValue("console_key"),
		Notes:      r.FormValue("notes"),
		AdminUser:  middleware.IsAdmin(r),
	}

	if file, _, err := r.FormFile("zip"); err == nil {
		defer file.Close()

		zipData, err := io.ReadAll(file)
		if err != nil {
			httputil.WriteValidationError(w, "could not read uploaded zip")
			return
		}

		key, err := s.opts.Blobs.Put(r.Context(), zipData, "application/zip")
		if err != nil {
			s.log.WithError(err).Error("Storing uploaded zip failed")
			s.countUpload("error")
			httputil.WriteInternalError(w, errors.New("could not store uploaded zip"))
			return
		}

		req.ZipData = zipData
		req.ZipURL = s.opts.PublicBaseURL + "/serve/" + key
	} else {
		req.ZipURL = r.FormValue("zip_url")
		if !httputil.RequireNonEmpty(w, req.ZipURL, "zip_url") {
			return
		}
	}

	result, err := s.opts.Uploads.SubmitUpload(r.Context(), req)
	if err != nil {
		s.writeUploadError(w, err)
		return
	}

	s.countUpload("accepted")
	if s.opts.Metrics != nil {
		s.opts.Metrics.UploadDuration.Observe(time.Since(start).Seconds())
		s.opts.Metrics.UploadZipBytes.Observe(float64(result.ZipSize))
	}

	if result.Plugin.Approved {
		// The category index only changes when an approved plugin lands,
		// so refresh it off the request path instead of waiting out the
		// cache TTL.
		async.SafeGo(context.Background(), 30*time.Second, "category refresh", s.log, func(ctx context.Context) error {
			return s.opts.Directory.RefreshCategories(ctx)
		})
	}

	message := "Your plugin was uploaded!"
	if !result.Plugin.Approved && !result.IsUpdate {
		message += " It'll be public after it's been approved."
	}

	httputil.WriteSuccess(w, uploadResponse{
		Message:  message,
		Plugin:   result.Plugin,
		Secret:   result.Plugin.Secret,
		Approved: result.Plugin.Approved,
	})
}

func (s *Server) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrSecretNotFound):
		s.countUpload("bad_secret")
		httputil.WriteValidationError(w, msgSecretNotFound)
	case errors.Is(err, registry.ErrMissingInfoJSON),
		errors.Is(err, registry.ErrMalformedArchive),
		errors.Is(err, registry.ErrInvalidMetadata):
		s.countUpload("bad_archive")
		httputil.WriteValidationError(w, msgBadArchive)
	case errors.Is(err, registry.ErrFetchFailed):
		s.countUpload("fetch_failed")
		httputil.WriteValidationError(w, "could not fetch the zip archive")
	default:
		s.countUpload("error")
		s.log.WithError(err).Error("Upload failed")
		httputil.WriteInternalError(w, errors.New("upload failed"))
	}
}

func (s *Server) countUpload(status string) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.UploadsTotal.WithLabelValues(status).Inc()
	}
}

// generateConsoleKey mints a fresh console key for an admin.
func (s *Server) generateConsoleKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.opts.ConsoleKeys.Issue(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Console key issue failed")
		httputil.WriteInternalError(w, errors.New("could not generate console key"))
		return
	}

	httputil.WriteSuccess(w, map[string]string{"console_key": key})
}

// consoleUpload tells console tooling what the registry already has for a
// name, so unchanged archives can skip the upload.
func (s *Server) consoleUpload(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	plugin, err := s.opts.Store.GetPluginByName(r.Context(), name)
	if err != nil {
		s.log.WithError(err).Error("Console upload lookup failed")
		httputil.WriteInternalError(w, errors.New("lookup failed"))
		return
	}

	var md5 interface{}
	if plugin != nil && plugin.ZipMD5 != "" {
		md5 = plugin.ZipMD5
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"md5":        md5,
		"upload_url": s.opts.PublicBaseURL + "/post_upload",
	})
}
