package adapter

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixxel-company-limited/zpl-print-server/config"
)

var artifactNamePattern = regexp.MustCompile(`^label_\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.(png|pdf|json)$`)

func newVirtualForTest(t *testing.T, baseURL, format string) *VirtualAdapter {
	t.Helper()
	a, err := NewVirtual(config.Virtual{
		DPMM:          "8dpmm",
		LabelWidthMM:  101.6,
		LabelHeightMM: 152.4,
		LabelIndex:    0,
		OutputFormat:  format,
		SaveDir:       t.TempDir(),
		BaseURL:       baseURL,
	})
	require.NoError(t, err)
	return a
}

func TestVirtualSendSavesRenderedLabel(t *testing.T) {
	rendered := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	var gotPath, gotAccept, gotContentType string
	var gotBody []byte
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Total-Count", "3")
		_, _ = w.Write(rendered)
	}))
	defer svc.Close()

	a := newVirtualForTest(t, svc.URL, "png")
	payload := []byte("^XA^FDhello^FS^XZ")
	result, err := a.Send(context.Background(), payload)

	require.NoError(t, err)
	assert.Equal(t, "/8dpmm/labels/4x6/0/", gotPath)
	assert.Equal(t, "image/png", gotAccept)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, payload, gotBody)

	assert.Equal(t, 3, result.Labels)
	assert.Equal(t, FormatPNG, result.Format)
	assert.Equal(t, len(rendered), result.Bytes)
	assert.Regexp(t, artifactNamePattern, result.Filename)
	assert.False(t, result.SavedAt.IsZero())

	saved, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, rendered, saved)

	artifacts, err := a.List()
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, result.Filename, artifacts[0].Name)
	assert.Equal(t, int64(len(rendered)), artifacts[0].Size)
}

func TestVirtualSendAcceptHeaderPerFormat(t *testing.T) {
	testCases := []struct {
		format string
		accept string
	}{
		{"png", "image/png"},
		{"pdf", "application/pdf"},
		{"json", "application/json"},
		{"bmp", "image/png"}, // unrecognized falls back to png
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			var gotAccept string
			svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAccept = r.Header.Get("Accept")
				_, _ = w.Write([]byte("rendered"))
			}))
			defer svc.Close()

			a := newVirtualForTest(t, svc.URL, tc.format)
			_, err := a.Send(context.Background(), []byte("^XA^XZ"))
			require.NoError(t, err)
			assert.Equal(t, tc.accept, gotAccept)
		})
	}
}

func TestVirtualSendRenderServiceError(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer svc.Close()

	a := newVirtualForTest(t, svc.URL, "png")
	_, err := a.Send(context.Background(), []byte("^XA^XZ"))

	var rse *RenderServiceError
	require.ErrorAs(t, err, &rse)
	assert.Equal(t, http.StatusNotFound, rse.Status)
	assert.Equal(t, "not found", rse.Body)

	// No artifact is written on failure.
	artifacts, err := a.List()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestVirtualSendTransportError(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	svc.Close() // nothing listens anymore

	a := newVirtualForTest(t, svc.URL, "png")
	_, err := a.Send(context.Background(), []byte("^XA^XZ"))

	assert.ErrorIs(t, err, ErrTransport)
}

func TestVirtualSendTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	svc := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	defer svc.Close()

	a := newVirtualForTest(t, svc.URL, "png")
	a.client.Timeout = 50 * time.Millisecond

	_, err := a.Send(context.Background(), []byte("^XA^XZ"))
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestVirtualTestUsesSendPath(t *testing.T) {
	var gotBody []byte
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("rendered"))
	}))
	defer svc.Close()

	a := newVirtualForTest(t, svc.URL, "png")
	result, err := a.Test(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []byte(testPayload), gotBody)
	assert.Equal(t, 1, result.Labels)
}

func TestVirtualDelete(t *testing.T) {
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("rendered"))
	}))
	defer svc.Close()

	a := newVirtualForTest(t, svc.URL, "png")

	t.Run("Missing", func(t *testing.T) {
		err := a.Delete("label_2024-01-01T00-00-00-000Z.png")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Existing", func(t *testing.T) {
		result, err := a.Send(context.Background(), []byte("^XA^XZ"))
		require.NoError(t, err)

		require.NoError(t, a.Delete(result.Filename))

		artifacts, err := a.List()
		require.NoError(t, err)
		assert.Empty(t, artifacts)
	})
}

func TestVirtualResolve(t *testing.T) {
	a := newVirtualForTest(t, "http://render.invalid", "png")

	t.Run("Traversal", func(t *testing.T) {
		_, _, err := a.Resolve("../../etc/passwd")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ContentType", func(t *testing.T) {
		_, ct, err := a.Resolve("label_2024-01-01T00-00-00-000Z.pdf")
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", ct)
	})
}

func TestInches(t *testing.T) {
	testCases := []struct {
		mm   float64
		want string
	}{
		{101.6, "4"},
		{152.4, "6"},
		{50, "1.97"},
		{25.4, "1"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, inches(tc.mm))
	}
}
