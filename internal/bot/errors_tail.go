package bot

import (
	"io"
	"os"
	"strings"
)

// TailLog returns up to the last n lines of the file, reading at most
// maxBytes from its end so a runaway log never blows the Telegram message
// budget (or memory).
func TailLog(path string, n int, maxBytes int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}

	readFrom := int64(0)
	if fi.Size() > int64(maxBytes) {
		readFrom = fi.Size() - int64(maxBytes)
	}
	if _, err := f.Seek(readFrom, io.SeekStart); err != nil {
		return "", err
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	text := strings.TrimRight(string(b), "\n")
	if text == "" {
		return "", nil
	}
	lines := strings.Split(text, "\n")
	if readFrom > 0 && len(lines) > 1 {
		// The budget cut mid-line; the partial first line is noise.
		lines = lines[1:]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n"), nil
}
