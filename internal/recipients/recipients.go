package recipients

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Join serializes addresses to the newline-delimited list format used
// for uploaded recipient files, one address per line.
func Join(addrs []string) []byte {
	return []byte(strings.Join(addrs, "\n"))
}

// Parse reads a newline-delimited recipient list. Lines are kept as-is
// apart from trailing line endings; filtering of blank or malformed
// addresses happens at send time.
func Parse(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)

	var addrs []string
	for scanner.Scan() {
		addrs = append(addrs, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return addrs, nil
}

// ParseFile parses a downloaded recipient list file.
func ParseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}
