package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MARVBAUW/proposition-commerciale-landy-sub000/internal/models"
	"github.com/jmgilman/go/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	fetchTimeout = 30 * time.Second
	fetchRetries = 2
)

// SignerStamp is the metadata baked into every stamped zone.
type SignerStamp struct {
	Name  string
	Date  string
	Image []byte
}

// Stamper renders signature stamps into PDF documents. The source bytes are
// never mutated; Stamp returns a fresh buffer.
type Stamper struct {
	httpClient *http.Client
}

func NewStamper() *Stamper {
	return &Stamper{
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// FetchDocument downloads the base PDF with one bounded retry on transient
// failure. Client errors like 404 are not transient and fail immediately.
// Anything beyond that propagates as a network error; retrying further is
// the caller's decision.
func (s *Stamper) FetchDocument(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchRetries; attempt++ {
		data, retryable, err := s.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
		slog.Warn("Base document fetch failed.", "url", url, "attempt", attempt, "error", err)
	}
	return nil, errors.Wrapf(lastErr, errors.CodeNetwork, "failed to fetch base document")
}

func (s *Stamper) fetchOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build fetch request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode < 400 || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("unexpected status %d fetching document", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	return data, true, err
}

// PageCount reads the page count of a PDF buffer.
func (s *Stamper) PageCount(pdf []byte) (int, error) {
	count, err := api.PageCount(bytes.NewReader(pdf), stampConfiguration())
	if err != nil {
		return 0, errors.Wrap(err, CodeRender, "failed to read page count")
	}
	return count, nil
}

// Stamp renders every zone onto the document in a single pass and returns
// the new byte buffer. Out-of-range page numbers are clamped into
// [1, pageCount] rather than rejected; that is the documented policy for
// configurations that drifted from the actual document.
func (s *Stamper) Stamp(basePDF []byte, zones []models.SignatureZone, stamp SignerStamp) ([]byte, error) {
	conf := stampConfiguration()

	pageCount, err := api.PageCount(bytes.NewReader(basePDF), conf)
	if err != nil {
		return nil, errors.Wrap(err, CodeRender, "failed to parse base document")
	}
	dims, err := api.PageDims(bytes.NewReader(basePDF), conf)
	if err != nil {
		return nil, errors.Wrap(err, CodeRender, "failed to read page dimensions")
	}

	watermarks := make(map[int][]*model.Watermark, len(zones))
	for _, zone := range zones {
		page := clampPage(zone.Page, pageCount)
		dim := dims[page-1]
		box := zoneBox(zone, dim.Width, dim.Height)

		overlay, err := renderOverlay(box, stamp.Name, stamp.Date, stamp.Image)
		if err != nil {
			return nil, err
		}

		desc := fmt.Sprintf("pos:bl, off:%.2f %.2f, scale:%.4f abs, rot:0, op:1",
			box.X, box.Y, 1.0/float64(overlayScale))
		wm, err := api.ImageWatermarkForReader(bytes.NewReader(overlay), desc, true, false, types.POINTS)
		if err != nil {
			return nil, errors.Wrapf(err, CodeRender, "failed to build stamp for zone %s", zone.ID)
		}
		watermarks[page] = append(watermarks[page], wm)
	}

	var out bytes.Buffer
	if err := api.AddWatermarksSliceMap(bytes.NewReader(basePDF), &out, watermarks, conf); err != nil {
		return nil, errors.Wrap(err, CodeRender, "failed to stamp document")
	}
	slog.Info("Document stamped.", "zoneCount", len(zones), "pageCount", pageCount)
	return out.Bytes(), nil
}

func clampPage(page, pageCount int) int {
	if page < 1 {
		return 1
	}
	if page > pageCount {
		return pageCount
	}
	return page
}

func stampConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
