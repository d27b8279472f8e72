package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mealvault/mealvault/internal/detector"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

const maxImageBytes = 10 << 20

type extractHandler struct {
	extractor Extractor
	logger    *slog.Logger
}

type extractURLRequest struct {
	URL      string     `json:"url"`
	Platform string     `json:"platform,omitempty"`
	Options  optionsDTO `json:"options"`
}

type extractTextRequest struct {
	Platform    string `json:"platform"`
	Text        string `json:"text"`
	Title       string `json:"title,omitempty"`
	Subject     string `json:"subject,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

type extractImageRequest struct {
	Image string `json:"image"` // base64
	extraction.OCROptions
}

type detectResponse struct {
	Platform  models.Platform `json:"platform,omitempty"`
	Supported bool            `json:"supported"`
	ContentID string          `json:"contentId,omitempty"`
}

// detect handles GET /api/v1/platforms/detect?url=...
func (h *extractHandler) detect(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, string(extraction.KindInvalidInput), "url query parameter is required")
		return
	}
	p, ok := detector.Detect(raw)
	resp := detectResponse{Supported: ok}
	if ok {
		resp.Platform = p
		resp.ContentID = detector.ContentID(p, raw)
	}
	writeJSON(w, http.StatusOK, resp)
}

// extractURL handles POST /api/v1/extract
func (h *extractHandler) extractURL(w http.ResponseWriter, r *http.Request) {
	var req extractURLRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	platform, err := optionalPlatform(req.Platform)
	if err != nil {
		writeExtractionError(w, err)
		return
	}

	res, err := h.extractor.Extract(r.Context(), req.URL, platform, req.Options.model())
	if err != nil {
		h.logger.Info("extraction failed", "url", req.URL, "platform", platform, "kind", extraction.KindOf(err), "error", err)
		writeExtractionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExtractResponse(res))
}

// extractText handles POST /api/v1/extract/text
func (h *extractHandler) extractText(w http.ResponseWriter, r *http.Request) {
	var req extractTextRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	platform, ok := models.ParsePlatform(req.Platform)
	if !ok {
		writeExtractionError(w, &extraction.Error{Kind: extraction.KindUnsupportedPlatform, Message: fmt.Sprintf("unknown platform %q", req.Platform)})
		return
	}

	meta := map[string]string{}
	for k, v := range map[string]string{
		"title":       req.Title,
		"subject":     req.Subject,
		"contentType": req.ContentType,
		"sourceUrl":   req.SourceURL,
	} {
		if v != "" {
			meta[k] = v
		}
	}

	res, err := h.extractor.ExtractText(r.Context(), platform, req.Text, meta)
	if err != nil {
		h.logger.Info("text extraction failed", "platform", platform, "kind", extraction.KindOf(err), "error", err)
		writeExtractionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExtractResponse(res))
}

// extractImage handles POST /api/v1/extract/image. The image arrives either
// as a multipart "image" file with option form fields, or as base64 JSON.
func (h *extractHandler) extractImage(w http.ResponseWriter, r *http.Request) {
	image, opts, err := readImageRequest(w, r)
	if err != nil {
		badRequest(w, err)
		return
	}

	res, err := h.extractor.ExtractImage(r.Context(), image, opts)
	if err != nil {
		h.logger.Info("image extraction failed", "bytes", len(image), "kind", extraction.KindOf(err), "error", err)
		writeExtractionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExtractResponse(res))
}

func readImageRequest(w http.ResponseWriter, r *http.Request) ([]byte, extraction.OCROptions, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req extractImageRequest
		if err := decodeJSONLimit(w, r, &req, maxImageBytes*2); err != nil {
			return nil, extraction.OCROptions{}, err
		}
		image, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return nil, extraction.OCROptions{}, fmt.Errorf("image must be base64: %w", err)
		}
		return image, req.OCROptions, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, extraction.OCROptions{}, fmt.Errorf("invalid multipart body: %w", err)
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return nil, extraction.OCROptions{}, fmt.Errorf("image file is required")
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nil, extraction.OCROptions{}, fmt.Errorf("read image: %w", err)
	}
	if len(image) > maxImageBytes {
		return nil, extraction.OCROptions{}, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	opts := extraction.OCROptions{
		Language:        r.FormValue("language"),
		Grayscale:       formBool(r, "grayscale"),
		EnhanceContrast: formBool(r, "enhanceContrast"),
		Deskew:          formBool(r, "deskew"),
	}
	if v := r.FormValue("confidenceThreshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, extraction.OCROptions{}, fmt.Errorf("confidenceThreshold must be a number")
		}
		opts.ConfidenceThreshold = f
	}
	return image, opts, nil
}

func formBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.FormValue(key))
	return b
}

// optionalPlatform parses a caller-supplied platform; empty means detect.
func optionalPlatform(raw string) (models.Platform, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	p, ok := models.ParsePlatform(raw)
	if !ok {
		return "", &extraction.Error{Kind: extraction.KindUnsupportedPlatform, Message: fmt.Sprintf("unknown platform %q", raw)}
	}
	return p, nil
}
