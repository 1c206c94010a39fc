package tns

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

const (
	bulkPath = "/system/files/tns_public_objects/tns_public_objects.csv.zip"
	bulkCSV  = "tns_public_objects.csv"
)

// DownloadBulk fetches the public object list and returns every object name.
// The zip contains a single CSV whose first row is a metadata banner, not a
// header; it is skipped before the header row is read. Used for bulk
// back-processing of TNS sources.
func (c *Client) DownloadBulk(ctx context.Context) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrTransientFailure, err)
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	if err := mw.WriteField("api_key", c.apiKey); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.site+bulkPath, &form)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.marker)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: tns bulk download: %w", domain.ErrTransientFailure, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: tns bulk body: %w", domain.ErrTransientFailure, err)
	}

	return parseBulkZip(payload)
}

// parseBulkZip extracts object names from the bulk csv zip payload.
func parseBulkZip(payload []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("%w: tns bulk zip: %w", domain.ErrMalformedResponse, err)
	}

	f, err := zr.Open(bulkCSV)
	if err != nil {
		return nil, fmt.Errorf("%w: %s missing from bulk zip", domain.ErrMalformedResponse, bulkCSV)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	// Row 0 is the metadata banner.
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("%w: tns bulk csv: %w", domain.ErrMalformedResponse, err)
	}
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: tns bulk csv header: %w", domain.ErrMalformedResponse, err)
	}
	nameCol := -1
	for i, col := range header {
		if col == "name" {
			nameCol = i
			break
		}
	}
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: tns bulk csv has no name column", domain.ErrMalformedResponse)
	}

	var names []string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: tns bulk csv row: %w", domain.ErrMalformedResponse, err)
		}
		if nameCol < len(row) && row[nameCol] != "" {
			names = append(names, row[nameCol])
		}
	}
	return names, nil
}
