// Package remote talks to the daily challenge and score upload endpoints.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperr "cryptogram/internal/errors"
	"cryptogram/internal/models"
	"cryptogram/internal/structures"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

const (
	dailyPath  = "/api/get_daily"
	uploadPath = "/api/games"

	maxErrorBody = 512
)

type ClientInterface interface {
	FetchDaily(ctx context.Context, date, token string) (*models.Quote, error)
	Upload(ctx context.Context, summary models.UploadSummary, token string) error
}

// dailyPayload tolerates numbers sent as strings for the numeric fields.
type dailyPayload struct {
	ID               any    `json:"id"`
	Text             string `json:"text"`
	Author           string `json:"author"`
	MinorAttribution string `json:"minor_attribution"`
	Difficulty       any    `json:"difficulty"`
	Date             string `json:"date"`
	UniqueLetters    any    `json:"unique_letters"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(conf *structures.Config) ClientInterface {
	timeout := conf.Remote.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(conf.Remote.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchDaily requests the challenge for date (YYYY-MM-DD). The returned quote
// is marked daily and active, ready for the local pool.
func (c *Client) FetchDaily(ctx context.Context, date, token string) (*models.Quote, error) {
	if c.baseURL == "" {
		return nil, apperr.New(apperr.ErrContentUnavailable, "remote daily provider is not configured")
	}
	if token == "" {
		return nil, apperr.New(apperr.ErrAuthRequired, "no access token for daily challenge")
	}

	endpoint := c.baseURL + dailyPath + "?" + url.Values{"date": {date}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNetworkFailure, "build daily request", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req, token)
	if err != nil {
		return nil, err
	}

	var payload dailyPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperr.Wrap(apperr.ErrServer, "decode daily challenge", err)
	}
	text := models.NormalizeText(payload.Text)
	if text == "" {
		return nil, apperr.New(apperr.ErrServer, "daily challenge has no text")
	}
	if payload.Date == "" {
		payload.Date = date
	}

	unique := cast.ToInt(payload.UniqueLetters)
	if unique <= 0 {
		unique = models.CountUniqueLetters(text)
	}
	return &models.Quote{
		Text:          text,
		Author:        payload.Author,
		Attribution:   payload.MinorAttribution,
		Difficulty:    cast.ToFloat64(payload.Difficulty),
		IsActive:      true,
		IsDaily:       true,
		DailyDate:     payload.Date,
		ServerID:      cast.ToInt64(payload.ID),
		UniqueLetters: unique,
	}, nil
}

// Upload posts a finished game. Any 2xx counts as accepted.
func (c *Client) Upload(ctx context.Context, summary models.UploadSummary, token string) error {
	if c.baseURL == "" {
		return apperr.New(apperr.ErrNetworkFailure, "remote upload endpoint is not configured")
	}
	if token == "" {
		return apperr.New(apperr.ErrAuthRequired, "no access token for upload")
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode upload summary: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, bytes.NewReader(data))
	if err != nil {
		return apperr.Wrap(apperr.ErrNetworkFailure, "build upload request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, token)
	return err
}

func (c *Client) do(req *http.Request, token string) ([]byte, error) {
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.ErrNetworkFailure, req.Method+" "+req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrNetworkFailure, "read response", err)
	}
	if err := statusError(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func statusError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	msg := fmt.Sprintf("remote returned %d: %s", status, strings.TrimSpace(string(body)))
	switch status {
	case http.StatusUnauthorized:
		return apperr.New(apperr.ErrAuthRequired, msg)
	case http.StatusNotFound:
		return apperr.New(apperr.ErrNoChallenge, msg)
	default:
		return apperr.New(apperr.ErrServer, msg)
	}
}
