package action

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"onfly/internal/task/job"
)

// HTTP issues one request per firing and fails unless the response status
// equals expect. client nil means a default client whose deadline comes from
// the firing context.
func HTTP(url, method string, expect int, client *http.Client) (job.Callback, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("http action needs a url")
	}
	if method == "" {
		method = http.MethodGet
	}
	if expect == 0 {
		expect = http.StatusOK
	}
	if client == nil {
		client = &http.Client{}
	}
	return func(ctx context.Context, _ time.Duration) error {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return errors.Wrap(err, "build request")
		}
		req.Header.Set("User-Agent", "onfly")
		resp, err := client.Do(req)
		if err != nil {
			return errors.Wrapf(err, "%s %s", method, url)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode != expect {
			return errors.Newf("%s %s: status %d, want %d", method, url, resp.StatusCode, expect)
		}
		return nil
	}, nil
}
