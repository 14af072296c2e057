package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDocumentRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.7 fake"))
	}))
	defer server.Close()

	s := NewStamper()
	data, err := s.FetchDocument(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 fake"), data)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchDocumentGivesUpAfterRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewStamper()
	_, err := s.FetchDocument(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	assert.Equal(t, int32(fetchRetries), calls.Load())
}

func TestFetchDocumentDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	s := NewStamper()
	_, err := s.FetchDocument(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	assert.Equal(t, int32(1), calls.Load(), "a missing document does not become present on retry")
}

func TestFetchDocumentHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStamper()
	_, err := s.FetchDocument(ctx, server.URL)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
}

func TestStampRejectsGarbagePDF(t *testing.T) {
	s := NewStamper()
	_, err := s.Stamp([]byte("definitely not a pdf"), nil, SignerStamp{})
	require.Error(t, err)
	assert.Equal(t, CodeRender, errors.GetCode(err))
}
