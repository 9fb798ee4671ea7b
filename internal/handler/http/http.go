package httphandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jgivc/ghrelay/internal/common"
	"github.com/jgivc/ghrelay/internal/entity"
)

const (
	contentTypeJSON = "application/json"
)

type ProxyService interface {
	Contents(ctx context.Context, owner, repo, path string, raw bool) (*entity.Payload, error)
	Releases(ctx context.Context) (*entity.Payload, error)
}

type ReleaseService interface {
	Downloads(ctx context.Context, arch entity.Arch, version string) (*entity.DownloadView, error)
}

type FlagService interface {
	Search(ctx context.Context, query, category string) *entity.FlagSearchResult
	Image(ctx context.Context, category, folder string) (string, error)
}

type BackupService interface {
	List(ctx context.Context) ([]entity.RepoEntry, error)
	Get(ctx context.Context, id string) (*entity.Backup, error)
}

type DownloadService interface {
	Download(ctx context.Context, fileURL, name string) (*entity.Download, error)
}

type RefreshService interface {
	Refresh(ctx context.Context) error
}

func NewContentsHandler(srv ProxyService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ContentsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("raw") == "true"

		payload, err := srv.Contents(r.Context(), r.PathValue("owner"), r.PathValue("repo"), r.PathValue("path"), raw)
		if err != nil {
			writeError(w, log, err)

			return
		}

		writePayload(w, log, payload)
	}
}

func NewReleasesHandler(srv ProxyService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "ReleasesHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := srv.Releases(r.Context())
		if err != nil {
			writeError(w, log, err)

			return
		}

		writePayload(w, log, payload)
	}
}

func NewDownloadsHandler(srv ReleaseService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DownloadsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		view, err := srv.Downloads(r.Context(), entity.ParseArch(q.Get("arch")), q.Get("version"))
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, view)
	}
}

func NewFlagsHandler(srv FlagService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "FlagsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		writeJSON(w, log, http.StatusOK, srv.Search(r.Context(), q.Get("q"), q.Get("category")))
	}
}

func NewFlagImageHandler(srv FlagService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "FlagImageHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		url, err := srv.Image(r.Context(), r.PathValue("category"), r.PathValue("folder"))
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, map[string]string{"url": url})
	}
}

func NewBackupsHandler(srv BackupService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "BackupsHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		backups, err := srv.List(r.Context())
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, backups)
	}
}

func NewBackupHandler(srv BackupService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "BackupHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		backup, err := srv.Get(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, backup)
	}
}

// NewFileHandler streams an upstream file to the client as an attachment.
func NewFileHandler(srv DownloadService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "FileHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		d, err := srv.Download(r.Context(), q.Get("url"), q.Get("name"))
		if err != nil {
			writeError(w, log, err)

			return
		}
		defer d.Body.Close()

		w.Header().Set("Content-Type", d.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+d.FileName+`"`)
		if d.Size >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
		}

		n, err := io.Copy(w, d.Body)
		if err != nil {
			log.Error("Cannot relay file", slog.String("file_name", d.FileName), slog.Int64("written", n), slog.Any("error", err))

			return
		}

		log.Info("File relayed", slog.String("file_name", d.FileName), slog.Int64("size", n))
	}
}

func NewRefreshHandler(srv RefreshService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "RefreshHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Refresh(r.Context()); err != nil {
			writeError(w, log, err)

			return
		}

		writeJSON(w, log, http.StatusOK, map[string]string{"status": "done"})
	}
}

func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}
}

// StatusFor maps a service error onto a response status. Upstream statuses are mirrored,
// an unreachable upstream is 500.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidArgument), errors.Is(err, common.ErrInvalidBackupID):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrHostNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, common.ErrReleaseNotFound), errors.Is(err, common.ErrBackupNotFound), errors.Is(err, common.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrRefreshInProgress):
		return http.StatusConflict
	case errors.Is(err, common.ErrUpstreamUnavailable):
		if status := common.UpstreamStatus(err); status != 0 {
			return status
		}

		return http.StatusInternalServerError
	case common.ParseError.Has(err), errors.Is(err, common.ErrBodyTooLarge):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := StatusFor(err)

	msg := http.StatusText(status)
	if status == http.StatusBadRequest {
		msg = err.Error()
	}

	// A client that went away is not a server failure.
	canceled := errors.Is(err, context.Canceled)

	if status >= http.StatusInternalServerError && !canceled {
		log.Error("Request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Debug("Request rejected", slog.Int("status", status), slog.Any("error", err))
	}

	writeJSON(w, log, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("Cannot encode response", slog.Any("error", err))
		http.Error(w, `{"error": "Internal Server Error"}`, http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	w.Write(data)
}

func writePayload(w http.ResponseWriter, log *slog.Logger, payload *entity.Payload) {
	w.Header().Set("Content-Type", payload.ContentType)
	if _, err := w.Write(payload.Body); err != nil {
		log.Error("Cannot write response", slog.Any("error", err))
	}
}
