// Package whatsapp wraps the Z-API cloud WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

const DefaultBaseURL = "https://api.z-api.io"

// Config holds Z-API credentials.
type Config struct {
	BaseURL     string
	InstanceID  string
	Token       string
	ClientToken string
}

// Configured reports whether the instance credentials are present. The
// account-level client token is optional.
func (c Config) Configured() bool {
	return c.InstanceID != "" && c.Token != ""
}

// Client calls the Z-API instance endpoints.
type Client struct {
	cfg  Config
	http *http.Client
	log  *logrus.Logger
}

func NewClient(cfg Config, httpClient *http.Client, log *logrus.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if !cfg.Configured() {
		log.WithField("operation", "whatsapp.NewClient").Warn("Z-API credentials not configured")
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

// Send delivers a text message. It satisfies service.Sender.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	_, err := c.do(ctx, http.MethodPost, "send-text", map[string]string{
		"phone":   phone,
		"message": message,
	})
	return err
}

// Status returns the instance connection state as reported by Z-API.
func (c *Client) Status(ctx context.Context) (map[string]interface{}, error) {
	return c.doObject(ctx, http.MethodGet, "status", nil)
}

// QRCode returns the pairing QR code as a base64 image.
func (c *Client) QRCode(ctx context.Context) (string, error) {
	obj, err := c.doObject(ctx, http.MethodGet, "qr-code/image", nil)
	if err != nil {
		return "", err
	}
	value, _ := obj["value"].(string)
	return value, nil
}

// ConfigureWebhook points Z-API's "message received" webhook at url.
func (c *Client) ConfigureWebhook(ctx context.Context, url string) error {
	_, err := c.do(ctx, http.MethodPut, "update-webhook-received", map[string]string{"value": url})
	return err
}

func (c *Client) Restart(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "restart", nil)
	return err
}

func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "disconnect", nil)
	return err
}

func (c *Client) doObject(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	obj := map[string]interface{}{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", path, err)
	}
	return obj, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	const op = "whatsapp.Client.do"

	if !c.cfg.Configured() {
		return nil, fmt.Errorf("z-api credentials not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	url := fmt.Sprintf("%s/instances/%s/token/%s/%s", c.cfg.BaseURL, c.cfg.InstanceID, c.cfg.Token, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.ClientToken != "" {
		req.Header.Set("Client-Token", c.cfg.ClientToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.WithField("operation", op).WithError(err).Errorf("z-api %s failed", path)
		return nil, fmt.Errorf("z-api %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("z-api %s: %d - %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
