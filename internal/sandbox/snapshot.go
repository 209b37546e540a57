// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// writeSnapshot drains the tar stream from CopyFromContainer into a
// zstd-compressed file on disk, so a long-idle session's working tree
// doesn't sit around uncompressed between turns.
func (p *DockerProvider) writeSnapshot(snapshotID string, tar io.Reader) error {
	if err := os.MkdirAll(p.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("sandbox: create snapshot dir: %w", err)
	}
	f, err := os.Create(p.snapshotPath(snapshotID))
	if err != nil {
		return fmt.Errorf("sandbox: create snapshot file: %w", err)
	}
	defer f.Close()

	zw, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("sandbox: create zstd writer: %w", err)
	}
	defer zw.Close()

	if _, err := io.Copy(zw, tar); err != nil {
		return fmt.Errorf("sandbox: write snapshot: %w", err)
	}
	return nil
}

// readSnapshot opens a previously written snapshot, decompressing it back
// into a tar stream suitable for CopyToContainer.
func (p *DockerProvider) readSnapshot(snapshotID string) (io.ReadCloser, error) {
	f, err := os.Open(p.snapshotPath(snapshotID))
	if err != nil {
		return nil, fmt.Errorf("sandbox: open snapshot: %w", err)
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("sandbox: create zstd reader: %w", err)
	}
	return &zstdReadCloser{decoder: zr, file: f}, nil
}

func (p *DockerProvider) snapshotPath(snapshotID string) string {
	return filepath.Join(p.snapshotDir, snapshotID+".tar.zst")
}

type zstdReadCloser struct {
	decoder *zstd.Decoder
	file    *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.decoder.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.decoder.Close()
	return z.file.Close()
}
