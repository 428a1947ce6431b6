package mailsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type fileSource struct {
	path string
}

// File is a source holding the single message stored at path.
func File(path string) Source {
	return fileSource{path: path}
}

func (s fileSource) Name() string {
	return s.path
}

func (fileSource) Kind() string { return KindFile }

func (s fileSource) Load(_ context.Context) ([]Entry, error) {
	msg, err := ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	return []Entry{{Message: msg}}, nil
}

// ReadFile loads one message file.
func ReadFile(path string) (Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Message{}, notFound("file", path)
		}
		return Message{}, fmt.Errorf("read message %s: %w", path, err)
	}
	return Message{Name: path, Raw: data}, nil
}

type dirSource struct {
	path string
}

// Directory is a source over the files of path in lexical order, dotfiles
// included. Subdirectories are not descended into.
func Directory(path string) Source {
	return dirSource{path: path}
}

func (s dirSource) Name() string {
	return s.path
}

func (dirSource) Kind() string { return KindDirectory }

func (s dirSource) Load(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound("directory", s.path)
		}
		return nil, fmt.Errorf("read directory %s: %w", s.path, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		path := filepath.Join(s.path, name)
		msg, err := ReadFile(path)
		if err != nil {
			msg = Message{Name: path}
		}
		entries = append(entries, Entry{Message: msg, Err: err})
	}
	return entries, nil
}
