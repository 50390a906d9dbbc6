// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package parse

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gogama/httpflex/request"
)

const (
	// DefaultDownloadDir is the directory File writes into by default.
	DefaultDownloadDir = "./downloads"
	// DefaultChunkSize is the default size of the buffer used to copy
	// a response body to a file.
	DefaultChunkSize = 8192
	// DefaultFilename is used when neither the request configuration
	// nor the URL provide a file name.
	DefaultFilename = "downloaded_file"
	// FilenameKey is the request configuration key naming the file a
	// download is written to.
	FilenameKey = "filename"
)

// File streams the response body into a file and returns the path of
// the written file.
//
// The file name is the request configuration value FilenameKey if set,
// else the last segment of the URL path, else DefaultName. Suffix is
// appended to the name. Only the base name is used, so a name can not
// escape Dir.
type File struct {
	Dir         string
	ChunkSize   int
	DefaultName string
	Suffix      string
}

// NewFile returns a File writing into dir, creating dir if needed. An
// empty dir means DefaultDownloadDir.
func NewFile(dir string) (*File, error) {
	f := &File{Dir: dir, ChunkSize: DefaultChunkSize, DefaultName: DefaultFilename}
	if f.Dir == "" {
		f.Dir = DefaultDownloadDir
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, err
	}
	return f, nil
}

// Stream always reports true.
func (f *File) Stream() bool { return true }

// Parse writes e.Response.Body into the target file.
func (f *File) Parse(e *request.Execution) (interface{}, error) {
	if e.Response == nil || e.Response.Body == nil {
		return nil, errors.New("no response body")
	}
	defer e.Response.Body.Close()

	dir := f.Dir
	if dir == "" {
		dir = DefaultDownloadDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	p := filepath.Join(dir, f.filename(e))
	out, err := os.Create(p)
	if err != nil {
		return nil, err
	}
	size := f.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}
	_, err = io.CopyBuffer(out, e.Response.Body, make([]byte, size))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (f *File) filename(e *request.Execution) string {
	name := f.DefaultName
	if name == "" {
		name = DefaultFilename
	}
	if u, err := url.Parse(e.URL()); err == nil {
		if last := path.Base(strings.TrimRight(u.Path, "/")); last != "." && last != "/" && last != "" {
			name = last
		}
	}
	if v, ok := e.Config[FilenameKey].(string); ok && v != "" {
		name = v
	}
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = DefaultFilename
	}
	return name + f.Suffix
}
