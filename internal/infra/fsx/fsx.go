// Package fsx 提供报告文件的原子写入与受限目录内的文件名解析。
package fsx

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 通过可替换的函数指针，让测试能稳定模拟 rename 失败。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// ErrUnsafeName 表示文件名包含路径成分（可能逃逸出目标目录）。
var ErrUnsafeName = errors.New("文件名不合法")

// WriteFile 原子写入 path（同目录临时文件 + rename），已存在的普通文件会被覆盖。
//
// 约束：
// - 目标是目录或非普通文件时返回 PathTypeConflictError，不做任何写入
// - 失败时不留下临时文件，也不会产生半写的目标文件
func WriteFile(path string, data []byte) error {
	path = filepath.Clean(path)
	if fi, err := os.Lstat(path); err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: path, Want: "file", Got: "dir"}
		}
		if !fi.Mode().IsRegular() {
			return &PathTypeConflictError{Path: path, Want: "regular file", Got: fi.Mode().Type().String()}
		}
	} else if !os.IsNotExist(err) {
		return err
	}
	return writeFileAtomic(filepath.Dir(path), filepath.Base(path), data, 0o644)
}

// ResolveIn 把用户提供的文件名解析为 dir 下的路径。
// 只接受单段文件名：空名、"."、".."、带分隔符的名字都返回 ErrUnsafeName。
func ResolveIn(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("%w：%q", ErrUnsafeName, name)
	}
	return filepath.Join(filepath.Clean(dir), name), nil
}

func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	dst := filepath.Join(dir, name)

	// 同目录临时文件（前缀带 '.'，避免被当作报告列出）。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := writeAll(tmp, data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := renameFunc(tmpName, dst); err != nil {
		return err
	}

	// 目录 fsync：best-effort。
	_ = syncDirBestEffort(dir)
	return nil
}

func writeAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义与支持情况不稳定，这里直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
