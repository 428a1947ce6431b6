package mailsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-mbox"
)

type mboxSource struct {
	path string
}

// Mbox is a source over every message of an mbox archive. Messages are named
// "<path>#<n>" with n counting from 1.
func Mbox(path string) Source {
	return mboxSource{path: path}
}

func (s mboxSource) Name() string {
	return s.path
}

func (mboxSource) Kind() string { return KindMbox }

func (s mboxSource) Load(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("file", s.path)
		}
		return nil, fmt.Errorf("open mbox %s: %w", s.path, err)
	}
	defer f.Close()
	return readMbox(ctx, s.path, f)
}

func readMbox(ctx context.Context, name string, r io.Reader) ([]Entry, error) {
	reader := mbox.NewReader(r)
	var entries []Entry
	for i := 1; ; i++ {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		msgName := fmt.Sprintf("%s#%d", name, i)
		mr, err := reader.NextMessage()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The reader cannot resynchronise after a framing error.
			entries = append(entries, Entry{Message: Message{Name: msgName}, Err: fmt.Errorf("read mbox message: %w", err)})
			break
		}
		data, err := io.ReadAll(mr)
		if err != nil {
			entries = append(entries, Entry{Message: Message{Name: msgName}, Err: fmt.Errorf("read mbox message: %w", err)})
			continue
		}
		entries = append(entries, Entry{Message: Message{Name: msgName, Raw: data}})
	}
	return entries, nil
}
