package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nixxel-company-limited/zpl-print-server/config"
)

// DefaultRenderTimeout bounds the round trip to the rendering service.
const DefaultRenderTimeout = 10 * time.Second

// labelCountHeader carries how many labels the service rendered from the
// payload. Missing means one.
const labelCountHeader = "X-Total-Count"

// testPayload is a fixed sample label used to verify connectivity and
// configuration end to end without caller-supplied data.
const testPayload = "^XA^FO50,50^A0N,40,40^FDTest Label^FS^FO50,110^BY2^BCN,80,Y,N,N^FD1234567890^FS^XZ"

// VirtualAdapter relays payloads to a Labelary-style rendering API and
// persists the rendered result in the local artifact store, so labels can
// be inspected without physical hardware.
type VirtualAdapter struct {
	dpmm     string
	widthMM  float64
	heightMM float64
	index    int
	format   Format
	baseURL  string
	client   *http.Client
	store    *Store
}

// NewVirtual builds the adapter and ensures the save directory exists.
func NewVirtual(cfg config.Virtual) (*VirtualAdapter, error) {
	store, err := NewStore(cfg.SaveDir)
	if err != nil {
		return nil, err
	}
	return &VirtualAdapter{
		dpmm:     cfg.DPMM,
		widthMM:  cfg.LabelWidthMM,
		heightMM: cfg.LabelHeightMM,
		index:    cfg.LabelIndex,
		format:   ParseFormat(cfg.OutputFormat),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: DefaultRenderTimeout},
		store:    store,
	}, nil
}

// Kind implements Adapter.
func (a *VirtualAdapter) Kind() string { return "virtual" }

// Close implements Adapter.
func (a *VirtualAdapter) Close() error { return nil }

// Store exposes the artifact store for listing and serving saved labels.
func (a *VirtualAdapter) Store() *Store { return a.store }

// renderURL builds the service endpoint: base, density tag, label size in
// inches, zero-based label index.
func (a *VirtualAdapter) renderURL() string {
	return fmt.Sprintf("%s/%s/labels/%sx%s/%d/",
		a.baseURL, a.dpmm, inches(a.widthMM), inches(a.heightMM), a.index)
}

// Send posts the payload to the rendering service and saves the rendered
// body under a timestamp-derived filename.
func (a *VirtualAdapter) Send(ctx context.Context, payload []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.renderURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", a.format.ContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		if isTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, a.renderURL())
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RenderServiceError{
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}

	labels := 1
	if v := resp.Header.Get(labelCountHeader); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			labels = n
		}
	}

	now := time.Now()
	name := artifactName(now, a.format)
	path, err := a.store.Save(name, body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Labels:   labels,
		Format:   a.format,
		Bytes:    len(body),
		Filename: name,
		Path:     path,
		SavedAt:  now,
	}, nil
}

// Test pushes a fixed sample label through the same send path.
func (a *VirtualAdapter) Test(ctx context.Context) (*Result, error) {
	return a.Send(ctx, []byte(testPayload))
}

// List returns the saved artifacts, newest first.
func (a *VirtualAdapter) List() ([]Artifact, error) {
	return a.store.List()
}

// Delete removes a saved artifact by name.
func (a *VirtualAdapter) Delete(name string) error {
	return a.store.Delete(name)
}

// Resolve maps an artifact name to its on-disk path and serving content
// type, guarding against paths outside the save directory.
func (a *VirtualAdapter) Resolve(name string) (path, contentType string, err error) {
	path, err = a.store.Resolve(name)
	if err != nil {
		return "", "", err
	}
	return path, ContentTypeFor(filepath.Ext(name)), nil
}

// inches converts millimeters to the inch figure the rendering service
// expects, rounded to two decimals with trailing zeros dropped.
func inches(mm float64) string {
	in := math.Round(mm/25.4*100) / 100
	return strconv.FormatFloat(in, 'f', -1, 64)
}
