package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"transferbot/pkg/logx"
)

const maxPayloadBytes = 8 << 20

type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty"
	StatusError Status = "error"
)

// Result of one poll. Cursor is always valid: on error or empty it is the
// input cursor.
type Result struct {
	Records []Record
	Cursor  int64
	Status  Status
	Err     error
}

type Poller struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	log       logx.Logger
}

func NewPoller(client *http.Client, timeout time.Duration, userAgent string, log logx.Logger) *Poller {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{client: client, timeout: timeout, userAgent: userAgent, log: log}
}

// Poll fetches one feed and selects records newer than cursor.
func (p *Poller) Poll(ctx context.Context, desc Descriptor, cursor int64) Result {
	records, err := p.fetch(ctx, desc.Endpoint)
	if err != nil {
		p.log.Debug("feed fetch failed", logx.String("feed", desc.Key), logx.Err(err))
		return Result{Cursor: cursor, Status: StatusError, Err: err}
	}
	if len(records) == 0 {
		return Result{Cursor: cursor, Status: StatusEmpty}
	}
	fresh, next := Select(records, cursor)
	if len(fresh) == 0 {
		return Result{Cursor: cursor, Status: StatusEmpty}
	}
	return Result{Records: fresh, Cursor: next, Status: StatusOK}
}

func (p *Poller) fetch(ctx context.Context, endpoint string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(p.userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload Payload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload.Data, nil
}
