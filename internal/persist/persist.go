// Package persist implements the versioned, length-prefixed, LZ4-compressed
// blob format used to save and load indexes to disk.
package persist

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"

	"github.com/standardbeagle/codeindex/internal/errs"
)

// FormatVersion is the current on-disk layout version. A mismatch at load
// time is reported as errs.IndexLoad, never silently migrated.
const FormatVersion uint32 = 1

// Purpose identifies which kind of index a blob holds.
type Purpose string

const (
	PurposeContent Purpose = "CIDX"
	PurposeDefs    Purpose = "DIDX"
	PurposeFiles   Purpose = "FIDX"
	PurposeGit     Purpose = "GHIS"
)

// suffixFor is the on-disk file suffix per purpose.
var suffixFor = map[Purpose]string{
	PurposeContent: "word-search",
	PurposeDefs:    "code-structure",
	PurposeFiles:   "file-list",
	PurposeGit:     "git-history",
}

// CacheKey derives the stable cache-path hash for root, purpose and
// (content indexes only) the extension list, joined in the order given
// (it is not sorted here): a
// 64-bit FNV-1a over the canonical path, purpose tag, and extensions,
// truncated to its low 32 bits for the file name.
func CacheKey(canonicalRoot string, purpose Purpose, extensions []string) uint32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonicalRoot))
	_, _ = h.Write([]byte(purpose))
	if len(extensions) > 0 {
		_, _ = h.Write([]byte(strings.Join(extensions, ",")))
	}
	return uint32(h.Sum64())
}

// FileName builds the `<semantic_prefix>_<u32 hex hash>.<suffix>` cache
// file name.
func FileName(semanticPrefix string, canonicalRoot string, purpose Purpose, extensions []string) string {
	key := CacheKey(canonicalRoot, purpose, extensions)
	return fmt.Sprintf("%s_%08x.%s", semanticPrefix, key, suffixFor[purpose])
}

// Save gob-encodes value, LZ4-compresses the result, and writes it to
// path atomically (write to path+".tmp", then rename).
func Save(path string, purpose Purpose, value any) error {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(value); err != nil {
		return errs.Serialization(err)
	}

	var compressed bytes.Buffer
	zw := lz4.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return errs.Io(err)
	}
	if err := zw.Close(); err != nil {
		return errs.Io(err)
	}

	var out bytes.Buffer
	header := make([]byte, 16)
	binary.LittleEndian.PutUint32(header[0:4], FormatVersion)
	copy(header[4:8], []byte(purpose))
	binary.LittleEndian.PutUint64(header[8:16], uint64(raw.Len()))
	out.Write(header)
	out.Write(compressed.Bytes())

	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Io(err)
	}
	if err := os.WriteFile(tmp, out.Bytes(), 0o644); err != nil {
		return errs.Io(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Io(err)
	}
	return nil
}

// Load reads path, validates its header against wantPurpose, decompresses
// and gob-decodes into dst (a pointer). A version or purpose mismatch, or
// any structural corruption, is reported as errs.IndexLoad(path) so the
// host can trigger a full rebuild rather than treat it as fatal.
func Load(path string, wantPurpose Purpose, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.IndexLoad(path, err.Error())
	}
	defer f.Close()

	header := make([]byte, 16)
	if _, err := io.ReadFull(f, header); err != nil {
		return errs.IndexLoad(path, err.Error())
	}
	version := binary.LittleEndian.Uint32(header[0:4])
	tag := Purpose(bytes.TrimRight(header[4:8], "\x00"))
	uncompressedLen := binary.LittleEndian.Uint64(header[8:16])

	if version != FormatVersion {
		return errs.IndexLoad(path, fmt.Sprintf("format version mismatch: got %d want %d", version, FormatVersion))
	}
	if tag != wantPurpose {
		return errs.IndexLoad(path, fmt.Sprintf("purpose mismatch: got %q want %q", tag, wantPurpose))
	}

	raw := make([]byte, 0, uncompressedLen)
	buf := bytes.NewBuffer(raw)
	zr := lz4.NewReader(f)
	if _, err := io.Copy(buf, zr); err != nil {
		return errs.IndexLoad(path, err.Error())
	}
	if uint64(buf.Len()) != uncompressedLen {
		return errs.IndexLoad(path, fmt.Sprintf("uncompressed length mismatch: got %d want %d", buf.Len(), uncompressedLen))
	}
	if err := gob.NewDecoder(buf).Decode(dst); err != nil {
		return errs.IndexLoad(path, err.Error())
	}
	return nil
}
