package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tickerlens/tickerlens/internal/middleware"
	"github.com/tickerlens/tickerlens/internal/nav"
	"github.com/tickerlens/tickerlens/internal/upload"
)

type AssetHandler struct {
	logger *slog.Logger
}

func NewAssetHandler(logger *slog.Logger) *AssetHandler {
	return &AssetHandler{
		logger: logger,
	}
}

func (m *AssetHandler) Run(ctx context.Context, addr string) {
	mx := http.NewServeMux()
	mx.HandleFunc("POST /upload", m.upload)
	mx.HandleFunc("GET /nav", m.nav)

	handler := middleware.Attach(mx, middleware.Logging(m.logger))

	srv := http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error(err.Error())
		}
	}()

	<-ctx.Done()

	timeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(timeout); err != nil {
		m.logger.Error(err.Error())
	}
}

func (m *AssetHandler) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer file.Close()

	// one byte past the cap is enough to trip the size check
	data, err := io.ReadAll(io.LimitReader(file, upload.MaxSize+1))
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	img, err := upload.Validate(header.Filename, data)
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		writeError(w, http.StatusBadRequest, "file is larger than 10MB")
		return
	case errors.Is(err, upload.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "only .png, .jpg, .jpeg and .webp images are accepted")
		return
	case errors.Is(err, upload.ErrBadDimensions):
		writeError(w, http.StatusBadRequest, "image must be between 100x100 and 4000x4000 pixels")
		return
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if err := json.NewEncoder(w).Encode(img); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (m *AssetHandler) nav(w http.ResponseWriter, r *http.Request) {
	entries := nav.WithActive(r.URL.Query().Get("active"))

	if err := json.NewEncoder(w).Encode(entries); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
