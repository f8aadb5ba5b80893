package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pixeldraw/pixeldraw/models"
)

// Verifier turns a bearer token into a verified user via the identity
// provider. Any failure mode (transport error, non-2xx, malformed payload)
// surfaces as an error; callers downgrade to guest.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.User, error)
}

const verifyTimeout = 5 * time.Second

type HTTPVerifier struct {
	url    string
	client *http.Client
}

func NewHTTPVerifier(url string) *HTTPVerifier {
	return &HTTPVerifier{
		url:    url,
		client: &http.Client{Timeout: verifyTimeout},
	}
}

type verifyResponse struct {
	Id       string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Error    string `json:"error"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (models.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return models.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return models.User{}, fmt.Errorf("verification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.User{}, fmt.Errorf("verification returned status %d", resp.StatusCode)
	}

	var payload verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return models.User{}, fmt.Errorf("malformed verification payload: %w", err)
	}

	if payload.Error != "" {
		return models.User{}, fmt.Errorf("verification rejected: %s", payload.Error)
	}
	if payload.Id == "" {
		return models.User{}, errors.New("verification payload missing id")
	}

	return models.User{
		Id:       payload.Id,
		Nickname: payload.Nickname,
		Avatar:   payload.Avatar,
	}, nil
}
