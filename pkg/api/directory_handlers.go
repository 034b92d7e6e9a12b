package api

import (
	"errors"
	"net/http"

	"github.com/flashlightplugins/registry/pkg/directory"
	"github.com/flashlightplugins/registry/pkg/httputil"
	"github.com/flashlightplugins/registry/pkg/locale"
)

// directoryRequest reads the listing selection from query parameters. The
// requested languages always gain an implicit "en" fallback.
func directoryRequest(r *http.Request) directory.Request {
	req := directory.Request{
		Category: httputil.ParseQueryString(r, "category", ""),
		Search:   httputil.ParseQueryString(r, "search", ""),
		Name:     httputil.ParseQueryString(r, "name", ""),
	}

	if languages := httputil.ParseQueryList(r, "languages"); languages != nil {
		req.Languages = append(languages, "en")
		req.Explicit = true
	} else {
		req.Languages = []string{"en"}
	}

	return req
}

type directoryResponse struct {
	Groups []locale.Group `json:"groups"`
	Search string         `json:"search,omitempty"`
}

// directory serves the grouped plugin listing for a category, search, or
// single name.
func (s *Server) directory(w http.ResponseWriter, r *http.Request) {
	req := directoryRequest(r)

	groups, err := s.opts.Directory.Listing(r.Context(), req)
	if err != nil {
		s.log.WithError(err).Error("Directory listing failed")
		httputil.WriteInternalError(w, errors.New("listing failed"))
		return
	}
	if groups == nil {
		groups = []locale.Group{}
	}

	httputil.WriteSuccess(w, directoryResponse{Groups: groups, Search: req.Search})
}

// categories serves the distinct category names across approved plugins.
func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.opts.Directory.Categories(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Categories lookup failed")
		httputil.WriteInternalError(w, errors.New("categories lookup failed"))
		return
	}
	if categories == nil {
		categories = []string{}
	}

	httputil.WriteSuccess(w, categories)
}

// browse serves the category index with Featured first, plus the Featured
// listing itself.
func (s *Server) browse(w http.ResponseWriter, r *http.Request) {
	categories, err := s.opts.Directory.BrowseCategories(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Browse categories failed")
		httputil.WriteInternalError(w, errors.New("browse failed"))
		return
	}

	req := directoryRequest(r)
	req.Category = "Featured"
	req.Search = ""
	req.Name = ""

	groups, err := s.opts.Directory.Listing(r.Context(), req)
	if err != nil {
		s.log.WithError(err).Error("Browse listing failed")
		httputil.WriteInternalError(w, errors.New("browse failed"))
		return
	}
	if groups == nil {
		groups = []locale.Group{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"categories": categories,
		"featured":   groups,
	})
}

// pluginPage serves the localized info dict for one plugin.
func (s *Server) pluginPage(w http.ResponseWriter, r *http.Request) {
	name, ok := httputil.ParsePathStringOrError(w, r, "name")
	if !ok {
		return
	}

	req := directoryRequest(r)
	dict, err := s.opts.Directory.PluginInfo(r.Context(), name, req.Languages)
	if err != nil {
		s.log.WithError(err).Error("Plugin lookup failed")
		httputil.WriteInternalError(w, errors.New("lookup failed"))
		return
	}
	if dict == nil {
		httputil.WriteNotFoundError(w, "no such plugin")
		return
	}

	httputil.WriteSuccess(w, dict)
}

// logInstall bumps the download counter. It always answers 200 so install
// tracking never blocks a client.
func (s *Server) logInstall(w http.ResponseWriter, r *http.Request) {
	name := httputil.ParseQueryString(r, "name", "")
	if name == "" {
		httputil.WriteValidationError(w, "name is required")
		return
	}

	if err := s.opts.Directory.LogInstall(r.Context(), name); err != nil {
		s.log.WithError(err).Warn("Install logging failed")
	} else if s.opts.Metrics != nil {
		s.opts.Metrics.InstallsTotal.Inc()
	}

	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// latestDownload redirects to the newest app release.
func (s *Server) latestDownload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Appcast == nil {
		httputil.WriteNotFoundError(w, "no appcast configured")
		return
	}

	url, err := s.opts.Appcast.LatestDownloadURL(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Latest download resolution failed")
		httputil.WriteServiceUnavailable(w, "download feed unavailable")
		return
	}

	http.Redirect(w, r, url, http.StatusFound)
}
