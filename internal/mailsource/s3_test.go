package mailsource

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	pages   [][]string
	objects map[string]string
	listErr error
	calls   int
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	page := f.calls
	f.calls++
	out := &s3.ListObjectsV2Output{}
	for _, key := range f.pages[page] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if page+1 < len(f.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String("next")
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestS3SourceLoad(t *testing.T) {
	client := &fakeS3{
		pages: [][]string{
			{"inbound/", "inbound/a"},
			{"inbound/b", "inbound/gone"},
		},
		objects: map[string]string{
			"inbound/a": "To: a@x.com\n",
			"inbound/b": "To: b@x.com\n",
		},
	}

	entries, err := NewS3(client, "mail", "inbound/").Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "s3://mail/inbound/a", entries[0].Message.Name)
	assert.Equal(t, []string{"To: a@x.com"}, entries[0].Message.Lines())
	assert.Equal(t, "s3://mail/inbound/b", entries[1].Message.Name)
	assert.ErrorIs(t, entries[2].Err, ErrNotFound)
	assert.Equal(t, 2, client.calls)
}

func TestS3SourceMissingBucket(t *testing.T) {
	client := &fakeS3{listErr: &types.NoSuchBucket{}}
	_, err := NewS3(client, "nope", "").Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "bucket nope does not exist", err.Error())

	client = &fakeS3{listErr: errors.New("denied")}
	_, err = NewS3(client, "mail", "").Load(context.Background())
	assert.ErrorContains(t, err, "denied")
}

func TestParseS3URL(t *testing.T) {
	bucket, prefix, err := parseS3URL("s3://mail-bucket/inbound/bounces/")
	require.NoError(t, err)
	assert.Equal(t, "mail-bucket", bucket)
	assert.Equal(t, "inbound/bounces/", prefix)

	_, _, err = parseS3URL("s3:///nobucket")
	assert.Error(t, err)
}
