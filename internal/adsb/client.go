package adsb

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/yegors/gnss-jamming/pkg/logger"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Client downloads readsb-hist snapshot files
type Client struct {
	httpClient *http.Client
	userAgent  string
	logger     *logger.Logger
}

// NewClient creates a new snapshot client
func NewClient(timeout time.Duration, userAgent string, loggerObj *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		logger:    loggerObj.Named("adsb-cli"),
	}
}

// FetchSnapshot downloads and decodes the snapshot at url
func (c *Client) FetchSnapshot(ctx context.Context, url string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("Fetching snapshot", logger.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	snap, err := DecodeSnapshot(resp.Body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Successfully fetched snapshot",
		logger.String("url", url),
		logger.Int("aircraft_count", len(snap.Aircraft)),
		logger.Int("message_count", snap.Messages),
	)

	return snap, nil
}

// DecodeSnapshot reads a snapshot that may or may not be gzip compressed.
// Archive files are named .json.gz but are frequently stored uncompressed.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read snapshot header: %w", err)
	}

	var body io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer zr.Close()
		body = zr
	}

	var snap Snapshot
	if err := json.NewDecoder(body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &snap, nil
}
