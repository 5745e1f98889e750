package imagedata

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// maxLineSize bounds a single encoded image row (roughly 4 bytes of text per image byte).
const maxLineSize = 256 << 20

// RowError reports which row of an image file could not be used.
type RowError struct {
	Row int // 1-based
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// RowsPath returns the location of a user's image file: <dir>/<id>.txt.
func RowsPath(dir string, userID int64) string {
	return filepath.Join(dir, strconv.FormatInt(userID, 10)+".txt")
}

// ParseRows reads one image per line, each line a comma-separated list of
// decimal byte values. Every line must parse completely, so a blank line
// fails the whole file. The newline ending the last row does not start a new one.
func ParseRows(r io.Reader) ([][]byte, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var images [][]byte
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		data, err := parseRow(strings.TrimSpace(scanner.Text()))
		if err != nil {
			return nil, &RowError{Row: lineNo, Err: err}
		}
		images = append(images, data)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading image rows: %w", err)
	}
	return images, nil
}

func parseRow(line string) ([]byte, error) {
	fields := strings.Split(line, ",")
	data := make([]byte, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 8)
		if err != nil {
			return nil, fmt.Errorf("value %d (%q) is not a byte", i+1, f)
		}
		data[i] = byte(v)
	}
	return data, nil
}

// ReadRowsFile parses the image file at path.
func ReadRowsFile(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image file: %w", err)
	}
	defer f.Close()

	images, err := ParseRows(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return images, nil
}

// FormatRow renders image bytes as one comma-separated line without the newline.
func FormatRow(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data) * 4)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	return sb.String()
}

// WriteRowsFile replaces <dir>/<id>.txt with the given images. The file is
// written under a temporary name and renamed, so readers never see a partial file.
func WriteRowsFile(dir string, userID int64, images [][]byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating input directory: %w", err)
	}

	var buf bytes.Buffer
	for _, img := range images {
		buf.WriteString(FormatRow(img))
		buf.WriteByte('\n')
	}

	path := RowsPath(dir, userID)
	tmp := filepath.Join(dir, fmt.Sprintf(".%d.%s.tmp", userID, uuid.NewString()))
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return "", fmt.Errorf("writing image file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("replacing image file: %w", err)
	}
	return path, nil
}
