package tns

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

func bulkZip(t *testing.T, filename, csvBody string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(filename)
	require.NoError(t, err)
	_, err = f.Write([]byte(csvBody))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const bulkBody = `"exported at 2026-08-29 00:00:00"
"objid","name_prefix","name","ra","declination"
"170000","SN","2024utu","210.910674","54.31165"
"170001","AT","2024aaa","1.0","2.0"
"170002","AT","","3.0","4.0"
`

func TestDownloadBulk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, bulkPath, r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "tns_marker")
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		assert.Equal(t, "test-key", r.PostFormValue("api_key"))
		w.Write(bulkZip(t, bulkCSV, bulkBody))
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	defer client.Close()

	names, err := client.DownloadBulk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024utu", "2024aaa"}, names, "blank names are dropped")
}

func TestDownloadBulkServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(testConfig(srv.URL))
	defer client.Close()

	_, err := client.DownloadBulk(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransientFailure)
}

func TestParseBulkZip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{name: "not a zip", payload: []byte("plain text"), want: domain.ErrMalformedResponse},
		{name: "wrong entry name", payload: nil, want: domain.ErrMalformedResponse},
		{name: "missing name column", payload: nil, want: domain.ErrMalformedResponse},
	}
	tests[1].payload = bulkZip(t, "other.csv", bulkBody)
	tests[2].payload = bulkZip(t, bulkCSV, "\"banner\"\n\"objid\",\"ra\"\n\"1\",\"2.0\"\n")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBulkZip(tt.payload)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
