package source

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ak7sky/popmatch/internal/core/model"
)

// LineFile reads one query per line; the address is the first whitespace
// separated field and the rest of the line is ignored.
type LineFile struct {
	path string
}

func NewLineFile(path string) *LineFile {
	return &LineFile{path: path}
}

func (src *LineFile) Relays(_ context.Context) ([]*model.Relay, error) {
	file, err := os.Open(src.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer file.Close()

	var relays []*model.Relay
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		relays = append(relays, &model.Relay{Addrs: []string{fields[0]}})
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, src.path, err)
	}
	return relays, nil
}
