/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"
)

const backupExt = ".xz"

// ErrNoBackup is returned when a chapter has no stored backups.
var ErrNoBackup = errors.New("no backups found")

// backupSource stores the current content of path xz-compressed in the backups
// directory and returns the backup file path.
func (s *FileStore) backupSource(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	var buf bytes.Buffer
	zw, err := xz.NewWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("create xz writer: %w", err)
	}
	if _, err := io.Copy(zw, src); err != nil {
		return "", fmt.Errorf("compress backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finish backup: %w", err)
	}

	bdir := s.Layout.BackupDir(path)
	stamp := s.clock().Format("20060102-150405.000000000")
	bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s%s", filepath.Base(path), stamp, backupExt))
	if err := atomicWrite(bpath, buf.Bytes()); err != nil {
		return "", err
	}
	s.logger().Info("source backup stored", slog.String("path", path), slog.String("backup", bpath))
	if s.KeepBackups > 0 {
		if err := s.pruneBackups(path, s.KeepBackups); err != nil {
			s.logger().Warn("prune backups failed", slog.String("path", path), slog.Any("err", err))
		}
	}
	return bpath, nil
}

// ListBackups returns the backup files of a source chapter, oldest first.
func (s *FileStore) ListBackups(path string) ([]string, error) {
	bdir := s.Layout.BackupDir(path)
	ents, err := os.ReadDir(bdir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("list backups", bdir, err)
	}
	prefix := filepath.Base(path) + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		out = append(out, filepath.Join(bdir, name))
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

// ReadBackup decompresses one backup file.
func ReadBackup(backupPath string) (string, error) {
	f, err := os.Open(backupPath)
	if err != nil {
		return "", ioErr("read backup", backupPath, err)
	}
	defer f.Close()
	zr, err := xz.NewReader(f)
	if err != nil {
		return "", ioErr("read backup", backupPath, err)
	}
	b, err := io.ReadAll(zr)
	if err != nil {
		return "", ioErr("read backup", backupPath, err)
	}
	return string(b), nil
}

// RestoreLatestBackup writes the newest backup back over the source chapter and
// returns the restored text. The replaced content is not backed up again.
func (s *FileStore) RestoreLatestBackup(path string) (string, error) {
	list, err := s.ListBackups(path)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", ioErr("restore backup", path, ErrNoBackup)
	}
	text, err := ReadBackup(list[len(list)-1])
	if err != nil {
		return "", err
	}
	if err := atomicWrite(path, []byte(text)); err != nil {
		return "", ioErr("restore backup", path, err)
	}
	return text, nil
}

func (s *FileStore) pruneBackups(path string, keep int) error {
	list, err := s.ListBackups(path)
	if err != nil {
		return err
	}
	if len(list) <= keep {
		return nil
	}
	var errs []error
	for _, p := range list[:len(list)-keep] {
		if err := os.Remove(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
