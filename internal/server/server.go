package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"

	"github.com/kiesman99/goat/internal/colormatch"
	"github.com/kiesman99/goat/internal/grain"
	"github.com/kiesman99/goat/internal/logging"
	"github.com/kiesman99/goat/internal/model"
	"github.com/kiesman99/goat/internal/nodes"
	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/internal/stitch"
	"github.com/kiesman99/goat/internal/upscaler"
	"github.com/kiesman99/goat/pkg/tile"
)

// Request limits
const (
	// MaxUploadSize bounds the size of uploaded images in bytes
	MaxUploadSize = 64 << 20
	// MaxImageSide bounds the width and height of planned and decoded images
	MaxImageSide = 65536
	// MaxImagePixels bounds the pixel count of decoded images
	MaxImagePixels = 64 << 20
	// MaxTiles bounds the number of tiles a single request may produce
	MaxTiles = 1 << 16
)

// Server serves the goat nodes over HTTP
type Server struct {
	startTime time.Time
	version   string
	stitcher  *stitch.Stitcher
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    int       `json:"uptime"`
	Version   string    `json:"version"`
}

// PlanResponse is returned by the plan endpoint
type PlanResponse struct {
	tile.Metadata
	Count int    `json:"count"`
	Mode  string `json:"mode"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Field     string         `json:"field,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewServer creates a new server instance. workers bounds the concurrent
// tile extraction of a single request.
func NewServer(version string, workers int) *Server {
	return &Server{
		startTime: time.Now(),
		version:   version,
		stitcher:  stitch.NewStitcher(workers),
	}
}

// Register mounts every endpoint on r
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.GetHealth)
	r.Get("/nodes", s.GetNodes)
	r.Get("/plan", s.GetPlan)
	r.Post("/roundtrip", s.PostRoundtrip)
	r.Post("/upscale", s.PostUpscale)
	r.Post("/grain", s.PostGrain)
	r.Post("/colormatch", s.PostColorMatch)
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    int(time.Since(s.startTime).Seconds()),
		Version:   s.version,
	})
}

// GetNodes lists the node registry
func (s *Server) GetNodes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, nodes.Registry())
}

// GetPlan returns the tile origins for an image size without touching pixels
func (s *Server) GetPlan(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	b := binder{q: q}
	var width, height int
	b.required("width", &width)
	b.required("height", &height)
	b.check(func() error { return tile.CheckRange("width", width, 1, MaxImageSide) })
	b.check(func() error { return tile.CheckRange("height", height, 1, MaxImageSide) })
	opts := b.tileOptions()
	if b.err != nil {
		s.handleError(w, r, b.err)
		return
	}
	if err := checkTileCount(width, height, opts.GeometryOptions); err != nil {
		s.handleError(w, r, err)
		return
	}

	origins, err := tile.GenerateOrigins(width, height, opts.GeometryOptions)
	if err == nil {
		origins, err = tile.Reorder(origins, opts.Mode, tile.Layout{
			ImageWidth:  width,
			ImageHeight: height,
			TileWidth:   opts.TileWidth,
			TileHeight:  opts.TileHeight,
		})
	}
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	s.writeJSON(w, r, PlanResponse{
		Metadata: tile.Metadata{Height: height, Width: width, Origins: origins},
		Count:    len(origins),
		Mode:     opts.Mode.String(),
	})
}

// PostRoundtrip splits the uploaded image into tiles and merges them back
func (s *Server) PostRoundtrip(w http.ResponseWriter, r *http.Request) {
	b := binder{q: r.URL.Query()}
	opts := b.tileOptions()
	blendMode := b.blendMode()
	blendRange := 128
	b.optional("blend_range", &blendRange)
	if b.err != nil {
		s.handleError(w, r, b.err)
		return
	}

	img, err := s.readImage(w, r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	if err := checkTileCount(img.Width, img.Height, opts.GeometryOptions); err != nil {
		s.handleError(w, r, err)
		return
	}

	tiles, err := s.stitcher.Split(r.Context(), img, opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	merged, err := s.stitcher.Merge(r.Context(), tiles.Batch, tiles.Metadata, blendMode, blendRange)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("X-Tile-Count", strconv.Itoa(tiles.Count))
	s.writePNG(w, r, merged)
}

// PostUpscale upscales the uploaded image with a resampling stand-in model
func (s *Server) PostUpscale(w http.ResponseWriter, r *http.Request) {
	b := binder{q: r.URL.Query()}
	opts := upscaler.DefaultOptions()
	b.optional("upscale_by", &opts.UpscaleBy)
	b.method("method", &opts.Method)
	b.optional("mixed_initial", &opts.MixedInitial)
	b.optional("tiled", &opts.Tiled)
	var order string
	if b.optional("stage2_order", &order) {
		b.check(func() (err error) {
			opts.Stage2Order, err = upscaler.ParseStage2Order(order)
			return err
		})
	}
	scale := 4
	b.optional("model_scale", &scale)
	b.check(func() error { return tile.CheckRange("model_scale", scale, 1, 16) })
	modelMethod := resample.Lanczos
	b.method("model_method", &modelMethod)
	if b.err != nil {
		s.handleError(w, r, b.err)
		return
	}
	// Out of range factors would only make the upscaler return its input.
	if err := opts.Validate(); err != nil {
		s.handleError(w, r, err)
		return
	}

	img, err := s.readImage(w, r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	res := upscaler.New(model.NewResampling(scale, modelMethod, nil), nil).Upscale(r.Context(), img, opts)

	w.Header().Set("X-Image-Width", strconv.Itoa(res.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(res.Height))
	w.Header().Set("X-Upscale-Fallback", strconv.FormatBool(res.Fallback))
	s.writePNG(w, r, res.Image)
}

// PostGrain adds film grain to the uploaded image
func (s *Server) PostGrain(w http.ResponseWriter, r *http.Request) {
	b := binder{q: r.URL.Query()}
	opts := grain.DefaultOptions()
	b.optional("strength", &opts.Strength)
	b.optional("seed", &opts.Seed)
	var kind string
	if b.optional("grain", &kind) {
		b.check(func() (err error) {
			opts.Kind, err = grain.ParseKind(kind)
			return err
		})
	}
	if b.err != nil {
		s.handleError(w, r, b.err)
		return
	}

	img, err := s.readImage(w, r)
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	out, err := grain.Apply(r.Context(), img, opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writePNG(w, r, out)
}

// PostColorMatch matches the colours of the "image" part to the "reference" part
func (s *Server) PostColorMatch(w http.ResponseWriter, r *http.Request) {
	b := binder{q: r.URL.Query()}
	opts := colormatch.DefaultOptions()
	b.optional("strength", &opts.Strength)
	b.optional("adaptive", &opts.Adaptive)
	if b.err != nil {
		s.handleError(w, r, b.err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_REQUEST", "expected a multipart form with image and reference", "", nil)
		return
	}

	img, err := formImage(r.MultipartForm, "image")
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	ref, err := formImage(r.MultipartForm, "reference")
	if err != nil {
		s.handleError(w, r, err)
		return
	}

	out, err := colormatch.Match(r.Context(), img, ref, opts)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	s.writePNG(w, r, out)
}

// imageError marks a request body that is not a decodable image
type imageError struct {
	field string
	err   error
}

func (e *imageError) Error() string { return fmt.Sprintf("%s: %v", e.field, e.err) }
func (e *imageError) Unwrap() error { return e.err }

func (s *Server) readImage(w http.ResponseWriter, r *http.Request) (*tile.Image, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadSize))
	if err != nil {
		return nil, &imageError{field: "body", err: err}
	}
	return decodeImage(data, "body")
}

func formImage(form *multipart.Form, field string) (*tile.Image, error) {
	files := form.File[field]
	if len(files) == 0 {
		return nil, &imageError{field: field, err: errors.New("missing")}
	}
	f, err := files[0].Open()
	if err != nil {
		return nil, &imageError{field: field, err: err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &imageError{field: field, err: err}
	}
	return decodeImage(data, field)
}

// decodeImage checks the image header against the size limits before
// decoding any pixels
func decodeImage(data []byte, field string) (*tile.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &imageError{field: field, err: err}
	}
	if err := tile.CheckRange("width", cfg.Width, 1, MaxImageSide); err != nil {
		return nil, err
	}
	if err := tile.CheckRange("height", cfg.Height, 1, MaxImageSide); err != nil {
		return nil, err
	}
	if pixels := cfg.Width * cfg.Height; pixels > MaxImagePixels {
		return nil, &tile.ConfigError{
			Field:      field,
			Value:      fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			Constraint: fmt.Sprintf("has more than %d pixels", MaxImagePixels),
		}
	}

	img, err := tile.DecodeImage(bytes.NewReader(data), tile.FormatFloat)
	if err != nil {
		return nil, &imageError{field: field, err: err}
	}
	return img, nil
}

// checkTileCount rejects tilings that would produce more than MaxTiles
// origins. Invalid geometry is left to ValidateGeometry.
func checkTileCount(width, height int, g tile.GeometryOptions) error {
	if err := tile.ValidateGeometry(width, height, g); err != nil {
		return err
	}
	if n := tile.TileCount(width, height, g); n > MaxTiles {
		return &tile.ConfigError{
			Field:      "tiles",
			Value:      n,
			Constraint: fmt.Sprintf("exceeds the limit of %d tiles per request", MaxTiles),
		}
	}
	return nil
}

// binder reads optional query parameters and keeps the first error
type binder struct {
	q   url.Values
	err error
}

func (b *binder) bind(name string, dest any) {
	if err := runtime.BindQueryParameter("form", true, false, name, b.q, dest); err != nil {
		b.err = &tile.ConfigError{Field: name, Value: b.q.Get(name), Constraint: "is not a valid value"}
	}
}

// optional binds name into dest if present and reports whether it was
func (b *binder) optional(name string, dest any) bool {
	if b.err != nil || !b.q.Has(name) {
		return false
	}
	b.bind(name, dest)
	return b.err == nil
}

func (b *binder) required(name string, dest any) {
	if b.err != nil {
		return
	}
	if !b.q.Has(name) {
		b.err = &tile.ConfigError{Field: name, Value: "", Constraint: "is required"}
		return
	}
	b.bind(name, dest)
}

func (b *binder) check(fn func() error) {
	if b.err == nil {
		b.err = fn()
	}
}

func (b *binder) method(name string, dest *resample.Method) {
	var v string
	if b.optional(name, &v) {
		b.check(func() (err error) {
			*dest, err = resample.ParseMethod(v)
			return err
		})
	}
}

func (b *binder) tileOptions() tile.Options {
	opts := tile.DefaultOptions()
	b.optional("tile_width", &opts.TileWidth)
	b.optional("tile_height", &opts.TileHeight)
	b.optional("row_overlap", &opts.RowOverlap)
	b.optional("col_overlap", &opts.ColOverlap)
	b.optional("row_offset", &opts.RowOffset)
	b.optional("col_offset", &opts.ColOffset)
	var mode string
	if b.optional("tiling_mode", &mode) {
		b.check(func() (err error) {
			opts.Mode, err = tile.ParseTilingMode(mode)
			return err
		})
	}
	return opts
}

func (b *binder) blendMode() tile.BlendMode {
	mode := tile.BlendSine
	var name string
	if b.optional("blend_mode", &name) {
		b.check(func() (err error) {
			mode, err = tile.ParseBlendMode(name)
			return err
		})
	}
	return mode
}

// handleError maps an error onto a status code and error body
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *tile.ConfigError
	var imgErr *imageError
	var maxErr *http.MaxBytesError

	switch {
	case errors.As(err, &cfgErr):
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), cfgErr.Field, nil)
	case errors.As(err, &maxErr):
		s.writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "image exceeds the upload limit", "", map[string]any{
			"limit_bytes": maxErr.Limit,
		})
	case errors.As(err, &imgErr):
		s.writeErrorResponse(w, r, http.StatusBadRequest, "INVALID_IMAGE", err.Error(), imgErr.field, nil)
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, r, http.StatusGatewayTimeout, "TIMEOUT", "request timed out", "", nil)
	default:
		logging.Logger().Error("request failed", "path", r.URL.Path, "error", err)
		s.writeErrorResponse(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", "", nil)
	}
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message, field string, details map[string]any) {
	response := ErrorResponse{
		Error:     errorCode,
		Message:   message,
		Field:     field,
		RequestID: requestID(r),
		Details:   details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger().Warn("encoding response", "path", r.URL.Path, "error", err)
	}
}

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, img *tile.Image) {
	var buf bytes.Buffer
	if err := tile.EncodePNG(&buf, img); err != nil {
		s.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Request-ID", requestID(r))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.Logger().Warn("writing response", "path", r.URL.Path, "error", err)
	}
}

// requestID returns the id assigned by the RequestID middleware, or a new one
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
