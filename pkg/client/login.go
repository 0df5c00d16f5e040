package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"
)

type loginRequest struct {
	Username        string          `json:"username"`
	Password        string          `json:"password"`
	LoginProperties loginProperties `json:"loginProperties"`
}

type loginProperties struct {
	AppName    string `json:"appName"`
	ClientTime string `json:"clientTime"`
}

type loginBody struct {
	User struct {
		ID            int64  `mapstructure:"id"`
		ApplicationID int64  `mapstructure:"applicationId"`
		FirstName     string `mapstructure:"firstName"`
		LastName      string `mapstructure:"lastName"`
	} `mapstructure:"user"`
}

// Login authenticates against the instance and stores the session token for
// subsequent requests. It is called automatically by the Factory but can be
// invoked directly to re-authenticate an expired session.
func (c *Client) Login(ctx context.Context) error {
	payload := loginRequest{
		Username: c.username,
		Password: c.password,
		LoginProperties: loginProperties{
			AppName:    c.appName,
			ClientTime: time.Now().Format("2/01/2006 15:04"),
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding login payload: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/user/loginUser?informat=json&format=json", c.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WrapError(err, "login request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewError("invalid URL, username, or password. Login failed")
	}
	session := resp.Header.Get("session-header")
	if session == "" {
		return NewError("login response carried no session token")
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return WrapError(err, "reading login response")
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return WrapError(err, "invalid JSON from login")
	}
	var lb loginBody
	if err := mapstructure.WeakDecode(decoded, &lb); err != nil {
		return WrapError(err, "unexpected login response shape")
	}

	c.mu.Lock()
	c.sessionHeader = session
	c.loginInfo = &LoginInfo{
		SessionHeader: session,
		UserID:        lb.User.ID,
		ApplicationID: lb.User.ApplicationID,
		FirstName:     lb.User.FirstName,
		LastName:      lb.User.LastName,
	}
	c.mu.Unlock()

	c.logger.Info("logged in", "url", c.url, "username", c.username)
	return nil
}
