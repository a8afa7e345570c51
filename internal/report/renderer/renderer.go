// Package renderer turns scored report data into the final PDF artifact,
// stamps it with a QR verification code and seals it with a SHA-256 hash.
package renderer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"compliance_portal_backend/internal/report/scoring"
)

// Artifact is a rendered report ready to seal.
type Artifact struct {
	PDF  []byte
	Hash string
}

// Client renders HTML into PDF through a gotenberg-compatible conversion
// service.
type Client struct {
	baseURL   string
	verifyURL string
	http      *http.Client
}

// New creates a renderer. verifyURL is the public verification endpoint
// encoded into each report's QR stamp.
func New(baseURL, verifyURL string) *Client {
	return &Client{
		baseURL:   baseURL,
		verifyURL: verifyURL,
		http:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Render produces the PDF for a scored batch and returns it with its
// SHA-256 hash. The hash covers the PDF bytes exactly as stored, so any
// later byte would break verification.
func (c *Client) Render(ctx context.Context, batchID uuid.UUID, result scoring.Result) (Artifact, error) {
	qr, err := c.verificationQR(batchID)
	if err != nil {
		return Artifact{}, err
	}

	html, err := reportHTML(batchID, result, qr)
	if err != nil {
		return Artifact{}, err
	}

	pdf, err := c.convert(ctx, html)
	if err != nil {
		return Artifact{}, err
	}

	sum := sha256.Sum256(pdf)
	return Artifact{PDF: pdf, Hash: hex.EncodeToString(sum[:])}, nil
}

// verificationQR encodes the public verification URL for the batch.
func (c *Client) verificationQR(batchID uuid.UUID) ([]byte, error) {
	png, err := qrcode.Encode(fmt.Sprintf("%s/verify/%s", c.verifyURL, batchID), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification qr: %w", err)
	}
	return png, nil
}

// convert sends the HTML to the conversion service as a multipart form,
// the gotenberg wire format.
func (c *Client) convert(ctx context.Context, html []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(html); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/forms/chromium/convert/html", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdf conversion failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf converter returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func reportHTML(batchID uuid.UUID, result scoring.Result, qrPNG []byte) ([]byte, error) {
	dimensions, err := json.MarshalIndent(result.Dimensions, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Technical Report %s</title></head>
<body>
<h1>Technical Report</h1>
<p>Batch: %s</p>
<p>Risk level: %s</p>
<p>Scored at: %s</p>
<pre>%s</pre>
<img alt="verification" src="data:image/png;base64,`,
		batchID, batchID, result.RiskLevel, result.ScoredAt.Format(time.RFC3339), dimensions)
	buf.WriteString(base64.StdEncoding.EncodeToString(qrPNG))
	buf.WriteString(`"/>
</body>
</html>`)
	return buf.Bytes(), nil
}
