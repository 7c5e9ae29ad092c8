package gcs

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "reports"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = New(client, Config{Bucket: "  "})
	require.Error(t, err)

	store, err := New(client, Config{Bucket: "reports", Prefix: "/enricher/"})
	require.NoError(t, err)
	assert.Equal(t, "enricher", store.prefix)
}

func TestReportObject(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "run-1/report.xlsx", ReportObject("", "run-1"))
	assert.Equal(t, "enricher/run-1/report.xlsx", ReportObject("/enricher/", "run-1"))
}

func TestPutReportRequiresRunID(t *testing.T) {
	t.Parallel()
	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: "reports"})
	require.NoError(t, err)
	_, err = store.PutReport(context.Background(), "", strings.NewReader("x"))
	require.Error(t, err)
}
