package tns

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

func testConfig(url string) Config {
	return Config{
		Site:      url,
		APIKey:    "test-key",
		BotID:     12345,
		BotType:   "bot",
		BotName:   "tarxiv_bot",
		RateDelay: time.Millisecond,
		Timeout:   5 * time.Second,
	}
}

const objectPayload = `{
	"id_code": 200,
	"data": {
		"objname": "2024utu",
		"radeg": 210.910674,
		"decdeg": 54.31165,
		"ra": "14:03:38.56",
		"dec": "+54:18:41.9",
		"name_prefix": "SN",
		"object_type": {"name": "SN Ia"},
		"discoverydate": "2024-09-15 09:21:36.000",
		"reporting_group": {"group_name": "ZTF"},
		"discovery_data_source": {"group_name": "ZTF"},
		"redshift": 0.015,
		"hostname": "NGC 5457"
	}
}`

func TestConnectorGetObject(t *testing.T) {
	var gotAgent, gotName string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.Header.Get("User-Agent")
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "test-key", r.PostFormValue("api_key"))
		gotName = r.PostFormValue("data")
		w.Write([]byte(objectPayload))
	}))
	defer srv.Close()

	conn := NewConnector(testConfig(srv.URL), nil)
	defer conn.Close()

	obj, err := conn.GetObject(context.Background(), domain.Target{Name: "2024utu"})
	require.NoError(t, err)
	require.True(t, obj.Matched())

	assert.Contains(t, gotAgent, "tns_marker")
	assert.Contains(t, gotAgent, `"tns_id":12345`)
	assert.Contains(t, gotName, `"objname":"2024utu"`)

	require.Len(t, obj.Meta.Identifiers, 1)
	assert.Equal(t, domain.Identifier{Name: "2024utu", Source: domain.SourceTNS}, obj.Meta.Identifiers[0])

	fields := obj.Meta.Fields
	assert.Equal(t, []domain.Field{{Value: 210.910674, Source: domain.SourceTNS}}, fields["ra_deg"])
	assert.Equal(t, []domain.Field{{Value: 54.31165, Source: domain.SourceTNS}}, fields["dec_deg"])
	assert.Equal(t, []domain.Field{{Value: "14:03:38.56", Source: domain.SourceTNS}}, fields["ra_hms"])
	assert.Equal(t, []domain.Field{
		{Value: "SN", Source: domain.SourceTNS},
		{Value: "SN Ia", Source: domain.SourceTNS},
	}, fields["object_type"])
	assert.Equal(t, []domain.Field{{Value: 0.015, Source: domain.SourceTNS}}, fields["redshift"])
	assert.Equal(t, []domain.Field{{Value: "NGC 5457", Source: domain.SourceTNS}}, fields["host_name"])

	assert.Empty(t, obj.Lightcurve, "tns contributes metadata only")
}

func TestConnectorGetObjectOmitsNullOptionals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id_code": 200, "data": {"objname": "2024aaa", "radeg": 1, "decdeg": 2, "redshift": null, "hostname": null}}`))
	}))
	defer srv.Close()

	conn := NewConnector(testConfig(srv.URL), nil)
	defer conn.Close()

	obj, err := conn.GetObject(context.Background(), domain.Target{Name: "2024aaa"})
	require.NoError(t, err)
	require.True(t, obj.Matched())
	assert.NotContains(t, obj.Meta.Fields, "redshift")
	assert.NotContains(t, obj.Meta.Fields, "host_name")
}

func TestConnectorGetObjectNoMatch(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty data object", status: http.StatusOK, body: `{"id_code": 200, "data": {"objname": ""}}`},
		{name: "null data", status: http.StatusOK, body: `{"id_code": 200, "data": null}`},
		{name: "not found", status: http.StatusNotFound, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			conn := NewConnector(testConfig(srv.URL), nil)
			defer conn.Close()

			obj, err := conn.GetObject(context.Background(), domain.Target{Name: "2099zzz"})
			require.NoError(t, err)
			assert.False(t, obj.Matched())
		})
	}
}

func TestConnectorGetObjectErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "unauthorised", status: http.StatusUnauthorized, want: domain.ErrAuthExpired},
		{name: "forbidden", status: http.StatusForbidden, want: domain.ErrAuthExpired},
		{name: "rate limited", status: http.StatusTooManyRequests, want: domain.ErrTransientFailure},
		{name: "server error", status: http.StatusBadGateway, want: domain.ErrTransientFailure},
		{name: "unexpected status", status: http.StatusTeapot, want: domain.ErrMalformedResponse},
		{name: "garbage body", status: http.StatusOK, body: "<html>no</html>", want: domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			conn := NewConnector(testConfig(srv.URL), nil)
			defer conn.Close()

			_, err := conn.GetObject(context.Background(), domain.Target{Name: "2024utu"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConnectorRequiresName(t *testing.T) {
	conn := NewConnector(testConfig("http://unused"), nil)
	defer conn.Close()

	_, err := conn.GetObject(context.Background(), domain.Target{RA: 210.9, Dec: 54.3, RadiusArcsec: 15})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConnectorName(t *testing.T) {
	conn := NewConnector(testConfig("http://unused"), nil)
	defer conn.Close()
	assert.Equal(t, domain.SurveyTNS, conn.Name())
}
