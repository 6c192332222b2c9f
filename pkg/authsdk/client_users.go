package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ListUsers fetches the full directory. Requires a valid access token;
// no particular scope.
func (c *SDKClient) ListUsers(ctx context.Context, accessToken string) (*ListUsersResponse, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/v1/users", nil, accessToken, nil)
	if err != nil {
		return nil, err
	}

	var users ListUsersResponse
	if err := decodeJSON(resp, &users, http.StatusOK); err != nil {
		return nil, err
	}
	return &users, nil
}

// CreateUser adds a directory entry. Requires a valid access token; no
// particular scope.
func (c *SDKClient) CreateUser(
	ctx context.Context,
	accessToken string,
	req CreateUserRequest,
) (*UserInfo, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.doAuthRequest(
		ctx,
		http.MethodPost,
		"/v1/users",
		bytes.NewReader(payload),
		accessToken,
		map[string]string{"Content-Type": "application/json"},
	)
	if err != nil {
		return nil, err
	}

	var user UserInfo
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a directory entry. The access token must carry
// the delete scope.
func (c *SDKClient) DeleteUser(ctx context.Context, accessToken, userID string) error {
	resp, err := c.doAuthRequest(
		ctx,
		http.MethodDelete,
		"/v1/users/"+url.PathEscape(userID),
		nil,
		accessToken,
		nil,
	)
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}
