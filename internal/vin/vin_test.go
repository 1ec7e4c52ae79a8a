package vin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodVIN = "1HGCM82633A004352"

func TestValid(t *testing.T) {
	cases := []struct {
		name string
		vin  string
		want bool
	}{
		{"standard vin", goodVIN, true},
		{"lowercase is normalized", "1hgcm82633a004352", true},
		{"surrounding whitespace", " 1HGCM82633A004352 ", true},
		{"too short", "1HGCM82633A00435", false},
		{"too long", "1HGCM82633A0043521", false},
		{"empty", "", false},
		{"contains I", "1HGCM82633A00435I", false},
		{"contains O", "1HGCM82633A00435O", false},
		{"contains Q", "1HGCM82633A00435Q", false},
		{"contains punctuation", "1HGCM82633A-04352", false},
		{"contains space inside", "1HGCM82633A 04352", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Valid(tc.vin))
		})
	}
}

func newTestClient(decodeURL, historyURL string) *Client {
	return NewClient(ClientConfig{
		DecodeBaseURL:     decodeURL,
		HistoryBaseURL:    historyURL,
		Timeout:           2 * time.Second,
		MaxRetries:        2,
		RetryDelay:        10 * time.Millisecond,
		RequestsPerSecond: 1000, // keep tests fast
	})
}

func TestDecodeSuccess(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"make":"Honda","model":"Accord","model_year":2003,"body_type":"sedan"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL+"/decode", "")
	result, err := c.Decode(context.Background(), goodVIN)
	require.NoError(t, err)
	assert.Equal(t, "/decode/"+goodVIN, gotPath)
	assert.Equal(t, goodVIN, result.VIN)
	assert.Equal(t, "Honda", result.Make)
	assert.Equal(t, "Accord", result.Model)
	assert.Equal(t, 2003, result.ModelYear)
	assert.NotEmpty(t, result.Raw)
}

func TestDecodeRejectsInvalidVINWithoutCallingUpstream(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.Decode(context.Background(), "NOT-A-VIN")
	assert.ErrorIs(t, err, ErrInvalidVIN)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDecodeNotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.Decode(context.Background(), goodVIN)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDecodeRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"make":"Honda","model":"Accord","model_year":2003}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	result, err := c.Decode(context.Background(), goodVIN)
	require.NoError(t, err)
	assert.Equal(t, "Honda", result.Make)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDecodeGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.Decode(context.Background(), goodVIN)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestHistorySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title_status":"clean","accident_count":0,"owner_count":2,"is_rental":false,"flood_damage":false}`))
	}))
	defer srv.Close()

	c := newTestClient("", srv.URL+"/history")
	report, err := c.History(context.Background(), goodVIN)
	require.NoError(t, err)
	assert.Equal(t, goodVIN, report.VIN)
	assert.Equal(t, "clean", report.TitleStatus)
	assert.Equal(t, 2, report.OwnerCount)
	assert.False(t, report.FloodDamage)
}

func TestHistoryCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestClient("", srv.URL)
	_, err := c.History(ctx, goodVIN)
	require.Error(t, err)
}

func TestDecodeMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	_, err := c.Decode(context.Background(), goodVIN)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
