package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/bouncecsv/internal/bounce"
	"github.io/infrasutra/bouncecsv/internal/mailsource"
	"github.io/infrasutra/bouncecsv/internal/metrics"
)

func newRunner(workers int) *Runner {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(bounce.NewProcessor(nil, nil, logger), logger, workers)
}

type staticSource struct {
	entries []mailsource.Entry
	err     error
}

func (s staticSource) Name() string { return "memory://static" }

func (s staticSource) Kind() string { return "static" }

func (s staticSource) Load(context.Context) ([]mailsource.Entry, error) {
	return s.entries, s.err
}

func TestParseDirectoryKeepsScanOrder(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 25; i++ {
		content := fmt.Sprintf("To: user%02d@x.com\nDiagnostic-Code: smtp;550 5.1.1 mailbox unavailable\n", i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%02d.eml", i)), []byte(content), 0o644))
	}

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			res, err := newRunner(workers).ParseDirectory(context.Background(), dir)
			require.NoError(t, err)
			require.Len(t, res.Records, 25)
			assert.Empty(t, res.Failures)
			for i, rec := range res.Records {
				assert.Equal(t, fmt.Sprintf("user%02d@x.com", i), rec.Recipient)
				assert.Equal(t, "550", rec.Code)
			}
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auto.eml")
	require.NoError(t, os.WriteFile(path, []byte("From: jane@x.com\nSubject: away\n"), 0o644))

	res, err := newRunner(1).ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []bounce.Record{{Source: path, Recipient: "jane@x.com", Reason: bounce.ReasonAutoResponder}}, res.Records)

	_, err = newRunner(1).ParseFile(context.Background(), filepath.Join(dir, "missing.eml"))
	assert.ErrorIs(t, err, mailsource.ErrNotFound)
}

func TestParseDirectoryMissing(t *testing.T) {
	_, err := newRunner(1).ParseDirectory(context.Background(), filepath.Join(t.TempDir(), "none"))
	require.ErrorIs(t, err, mailsource.ErrNotFound)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestRunSkipsFailedMessages(t *testing.T) {
	src := staticSource{entries: []mailsource.Entry{
		{Message: mailsource.Message{Name: "a", Raw: []byte("To: a@x.com\n")}},
		{Message: mailsource.Message{Name: "b"}, Err: errors.New("vanished")},
		{Message: mailsource.Message{Name: "c", Raw: []byte("To: c@x.com\n")}},
	}}

	res, err := newRunner(2).Run(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "a", res.Records[0].Source)
	assert.Equal(t, "c", res.Records[1].Source)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "b", res.Failures[0].Name)
}

func TestRunLabelsMetricsByKind(t *testing.T) {
	failed := metrics.MessagesFailed.WithLabelValues("static")
	before := testutil.ToFloat64(failed)

	src := staticSource{entries: []mailsource.Entry{
		{Message: mailsource.Message{Name: "/var/mail/x/1"}, Err: errors.New("vanished")},
		{Message: mailsource.Message{Name: "/var/mail/x/2"}, Err: errors.New("vanished")},
	}}
	_, err := newRunner(1).Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, before+2, testutil.ToFloat64(failed))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.MessagesFailed.WithLabelValues(src.Name())))
}

func TestRunSourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := newRunner(1).Run(context.Background(), staticSource{err: boom})
	assert.ErrorIs(t, err, boom)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := staticSource{entries: []mailsource.Entry{{Message: mailsource.Message{Name: "a"}}}}
	_, err := newRunner(1).Run(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}
