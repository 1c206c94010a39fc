package ztf

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// finkServer fakes the two Fink endpoints the connector uses.
func finkServer(t *testing.T, cone string, objects string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		switch r.URL.Path {
		case "/api/v1/conesearch":
			assert.Equal(t, "i:objectId", payload["columns"])
			w.Write([]byte(cone))
		case "/api/v1/objects":
			assert.Equal(t, "json", payload["output-format"])
			w.Write([]byte(objects))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

const objectRows = `[
	{"i:jd": 2460570.5, "i:magpsf": 18.2, "i:sigmapsf": 0.05, "i:fid": 1, "i:diffmaglim": 20.1,
	 "d:mangrove_2MASS_name": "None", "d:mangrove_HyperLEDA_name": "NGC5457"},
	{"i:jd": 2460571.5, "i:magpsf": 17.9, "i:sigmapsf": 0.04, "i:fid": 2, "i:diffmaglim": 20.3,
	 "d:mangrove_2MASS_name": "None", "d:mangrove_HyperLEDA_name": "NGC5457"}
]`

func target() domain.Target {
	return domain.Target{Name: "2024utu", RA: 210.910674, Dec: 54.31165, RadiusArcsec: 15}
}

func TestConnectorGetObject(t *testing.T) {
	srv := finkServer(t, `[{"i:objectId": "ZTF24aapvieu"}]`, objectRows)
	defer srv.Close()

	conn := NewConnector(Config{URL: srv.URL}, nil)
	defer conn.Close()

	obj, err := conn.GetObject(context.Background(), target())
	require.NoError(t, err)
	require.True(t, obj.Matched())

	require.Len(t, obj.Meta.Identifiers, 1)
	assert.Equal(t, domain.Identifier{Name: "ZTF24aapvieu", Source: domain.SourceZTF}, obj.Meta.Identifiers[0])

	// 2MASS name is the literal "None", only the HyperLEDA name survives.
	assert.Equal(t, []domain.Field{{Value: "NGC5457", Source: domain.SourceMangrove}}, obj.Meta.Fields["host_name"])

	require.Len(t, obj.Lightcurve, 2)
	first := obj.Lightcurve[0]
	assert.InDelta(t, 60570.0, first.MJD, 1e-9)
	assert.Equal(t, 18.2, first.Mag)
	assert.Equal(t, 0.05, first.MagErr)
	require.NotNil(t, first.Limit)
	assert.Equal(t, 20.1, *first.Limit)
	assert.Equal(t, "g", first.Filter)
	assert.Equal(t, "main", first.Unit)
	assert.Equal(t, domain.SurveyZTF, first.Survey)
	assert.Equal(t, "R", obj.Lightcurve[1].Filter)
}

func TestConnectorMultipleMatchesTakesFirst(t *testing.T) {
	srv := finkServer(t, `[{"i:objectId": "ZTF24first"}, {"i:objectId": "ZTF24second"}]`, objectRows)
	defer srv.Close()

	conn := NewConnector(Config{URL: srv.URL}, nil)
	defer conn.Close()

	obj, err := conn.GetObject(context.Background(), target())
	require.NoError(t, err)
	require.True(t, obj.Matched())
	assert.Equal(t, "ZTF24first", obj.Meta.Identifiers[0].Name)
}

func TestConnectorDropsUnknownFilterRows(t *testing.T) {
	rows := `[
		{"i:jd": 2460570.5, "i:magpsf": 18.2, "i:sigmapsf": 0.05, "i:fid": 1, "i:diffmaglim": 20.1,
		 "d:mangrove_2MASS_name": "None", "d:mangrove_HyperLEDA_name": "None"},
		{"i:jd": 2460571.5, "i:magpsf": 17.9, "i:sigmapsf": 0.04, "i:fid": 4, "i:diffmaglim": 20.3,
		 "d:mangrove_2MASS_name": "None", "d:mangrove_HyperLEDA_name": "None"}
	]`
	srv := finkServer(t, `[{"i:objectId": "ZTF24aapvieu"}]`, rows)
	defer srv.Close()

	conn := NewConnector(Config{URL: srv.URL}, nil)
	defer conn.Close()

	obj, err := conn.GetObject(context.Background(), target())
	require.NoError(t, err)
	require.True(t, obj.Matched())

	// Filter id 4 names no ZTF bandpass, the row is dropped.
	require.Len(t, obj.Lightcurve, 1)
	assert.Equal(t, "g", obj.Lightcurve[0].Filter)
}

func TestConnectorNoMatch(t *testing.T) {
	tests := []struct {
		name    string
		cone    string
		objects string
	}{
		{name: "empty cone", cone: `[]`, objects: objectRows},
		{name: "empty cone body", cone: "", objects: objectRows},
		{name: "id miss", cone: `[{"i:objectId": "ZTF24abeiqfc"}]`, objects: `[]`},
		{name: "empty objects body", cone: `[{"i:objectId": "ZTF24abeiqfc"}]`, objects: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := finkServer(t, tt.cone, tt.objects)
			defer srv.Close()

			conn := NewConnector(Config{URL: srv.URL}, nil)
			defer conn.Close()

			obj, err := conn.GetObject(context.Background(), target())
			require.NoError(t, err)
			assert.False(t, obj.Matched())
		})
	}
}

func TestConnectorErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "server error", status: http.StatusInternalServerError, want: domain.ErrTransientFailure},
		{name: "rate limited", status: http.StatusTooManyRequests, want: domain.ErrTransientFailure},
		{name: "bad request", status: http.StatusBadRequest, want: domain.ErrMalformedResponse},
		{name: "garbage body", status: http.StatusOK, body: "not json", want: domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			conn := NewConnector(Config{URL: srv.URL}, nil)
			defer conn.Close()

			_, err := conn.GetObject(context.Background(), target())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnectorRequiresCoordinates(t *testing.T) {
	conn := NewConnector(Config{URL: "http://unused"}, nil)
	defer conn.Close()

	_, err := conn.GetObject(context.Background(), domain.Target{Name: "2024utu"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
