package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	clienterrors "github.com/jrsteele09/go-chat-client/internal/errors"
)

const defaultRefreshTokenPath = "/auth/refresh-token"

// RefreshClient exchanges a refresh token for a new credential pair. The
// refresh endpoint is unauthenticated: routing it through the bearer
// pipeline would require the very credential being renewed.
type RefreshClient struct {
	HTTPClient *http.Client
	BaseURL    string
	Path       string
}

var _ Renewer = (*RefreshClient)(nil)

func NewRefreshClient(baseURL string) *RefreshClient {
	return &RefreshClient{
		HTTPClient: &http.Client{Timeout: 45 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type refreshRequest struct {
	Token string `json:"token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Refresh posts the refresh token and returns the new pair. When the server
// does not rotate the refresh token, the one sent is carried forward.
func (rc *RefreshClient) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, clienterrors.ErrNoRefreshToken
	}

	body, err := json.Marshal(refreshRequest{Token: refreshToken})
	if err != nil {
		return nil, errors.Wrap(err, "[RefreshClient.Refresh] marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.BaseURL+rc.path(), bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[RefreshClient.Refresh] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rc.httpClient().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[RefreshClient.Refresh] do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, readStatusError("[RefreshClient.Refresh] refresh rejected", resp)
	}

	var parsed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "[RefreshClient.Refresh] decode response")
	}

	pair := &Pair{
		AccessToken:  strings.TrimSpace(parsed.AccessToken),
		RefreshToken: strings.TrimSpace(parsed.RefreshToken),
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

func readStatusError(prefix string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Errorf("%s: status=%d", prefix, resp.StatusCode)
	}
	return fmt.Errorf("%s: status=%d body=%s", prefix, resp.StatusCode, text)
}

func (rc *RefreshClient) httpClient() *http.Client {
	if rc.HTTPClient != nil {
		return rc.HTTPClient
	}
	return &http.Client{Timeout: 45 * time.Second}
}

func (rc *RefreshClient) path() string {
	if strings.TrimSpace(rc.Path) != "" {
		return rc.Path
	}
	return defaultRefreshTokenPath
}
