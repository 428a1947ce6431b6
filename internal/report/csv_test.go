package report

import (
	"encoding/csv"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/bouncecsv/internal/bounce"
)

var sample = []bounce.Record{
	{Source: "1.eml", Recipient: "a@x.com", Code: "550", Reason: "mailbox unavailable"},
	{Source: "2.eml", Recipient: "", Code: "", Reason: bounce.ReasonAutoResponder},
	{Source: "3.eml", Recipient: "b@x.com", Code: "", Reason: `x; "quoted", with comma`},
}

func TestString(t *testing.T) {
	got, err := String(sample)
	require.NoError(t, err)
	want := "a@x.com,550,mailbox unavailable\n" +
		",,auto responder\n" +
		"b@x.com,,\"x; \"\"quoted\"\", with comma\"\n"
	assert.Equal(t, want, got)

	rows, err := csv.NewReader(strings.NewReader(got)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(sample))
	assert.Equal(t, `x; "quoted", with comma`, rows[2][2])
}

func TestStringEmpty(t *testing.T) {
	got, err := String(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServe(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, Serve(rec, sample[:1]))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=bounces.csv", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "a@x.com,550,mailbox unavailable\n", rec.Body.String())
}
