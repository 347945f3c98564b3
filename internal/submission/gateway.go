// Package submission sends finished answer sheets to the remote form and
// renders them for download.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stemsi/exstem-casebook/internal/model"
)

var (
	ErrNoDestination = errors.New("submission destination not configured")
	ErrRejected      = errors.New("submission rejected by destination")
)

// Gateway delivers an answer sheet. A false result with a nil error never
// happens; every failure carries a reason the student can be shown.
type Gateway interface {
	Submit(ctx context.Context, answers map[string]model.Value, destination string, mapping map[string]string) (bool, error)
}

// MapFields keeps only keys present in mapping, renamed to the remote field
// names, with every value coerced to its string form.
func MapFields(answers map[string]model.Value, mapping map[string]string) url.Values {
	form := url.Values{}
	for local, remote := range mapping {
		v, ok := answers[local]
		if !ok {
			continue
		}
		form.Set(remote, v.String())
	}
	return form
}

// FormGateway posts the mapped answers as an url-encoded form.
type FormGateway struct {
	httpClient *http.Client
}

// NewFormGateway creates a FormGateway whose requests give up after timeout.
func NewFormGateway(timeout time.Duration) *FormGateway {
	return &FormGateway{httpClient: &http.Client{Timeout: timeout}}
}

func (g *FormGateway) Submit(ctx context.Context, answers map[string]model.Value, destination string, mapping map[string]string) (bool, error) {
	if destination == "" {
		return false, ErrNoDestination
	}

	body := MapFields(answers, mapping).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, strings.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return false, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return true, nil
}
