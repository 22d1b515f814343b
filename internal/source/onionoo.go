// Package source reads the relays to be matched: Onionoo summary documents,
// fetched live or from a saved file, and plain address lists.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/ak7sky/popmatch/internal/core/model"
	"github.com/ak7sky/popmatch/internal/logger"
	retry "github.com/avast/retry-go/v5"
	"github.com/tidwall/gjson"
)

var (
	ErrFetch  = errors.New("failed to fetch relays")
	ErrDecode = errors.New("failed to decode relays")
)

// OnionooLive downloads the summary document from an Onionoo instance.
type OnionooLive struct {
	url      string
	client   *http.Client
	attempts uint
	logger   logger.Logger
}

func NewOnionooLive(url string, timeout time.Duration, attempts uint, logger logger.Logger) *OnionooLive {
	return &OnionooLive{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		attempts: attempts,
		logger:   logger,
	}
}

func (src *OnionooLive) Relays(ctx context.Context) ([]*model.Relay, error) {
	src.logger.Info("fetching relays from %s", src.url)
	data, err := retry.NewWithData[[]byte](
		retry.Context(ctx),
		retry.Attempts(src.attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var statusErr *statusError
			return !errors.As(err, &statusErr) || statusErr.code >= http.StatusInternalServerError
		}),
		retry.OnRetry(func(n uint, err error) {
			src.logger.Warn("fetch attempt %d failed: %v", n+1, err)
		}),
	).Do(func() ([]byte, error) {
		return src.fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("%w from %s: %w", ErrFetch, src.url, err)
	}
	return decodeSummary(data)
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func (src *OnionooLive) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := src.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// OnionooFile reads a previously saved summary document.
type OnionooFile struct {
	path string
}

func NewOnionooFile(path string) *OnionooFile {
	return &OnionooFile{path: path}
}

func (src *OnionooFile) Relays(_ context.Context) ([]*model.Relay, error) {
	data, err := os.ReadFile(src.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return decodeSummary(data)
}

// decodeSummary keeps the running relays of a summary document:
// {"relays": [{"n": nick, "f": fingerprint, "a": [addr, ...], "r": running}]}.
func decodeSummary(data []byte) ([]*model.Relay, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid json", ErrDecode)
	}
	relaysJSON := gjson.GetBytes(data, "relays")
	if !relaysJSON.IsArray() {
		return nil, fmt.Errorf("%w: missing relays array", ErrDecode)
	}

	var relays []*model.Relay
	relaysJSON.ForEach(func(_, value gjson.Result) bool {
		if !value.Get("r").Bool() {
			return true
		}
		relay := &model.Relay{
			Nick:        value.Get("n").String(),
			Fingerprint: value.Get("f").String(),
		}
		value.Get("a").ForEach(func(_, addr gjson.Result) bool {
			relay.Addrs = append(relay.Addrs, addr.String())
			return true
		})
		relays = append(relays, relay)
		return true
	})
	return relays, nil
}
