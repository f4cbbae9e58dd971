package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/thameeshasirimanna-dev/whatsbi-sub002/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoMessageID = errors.New("provider response carried no message id")
)

// APIError is a non-2xx response from the Graph API. The body is kept
// verbatim for logging; the provider encodes rejection reasons there.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api error: status %d - %s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:  baseURL,
		Timeout:  10 * time.Second,
		MaxConns: 512,
	}
}

// Client talks to the WhatsApp Business Cloud API. One instance is shared
// across requests; per-tenant credentials are passed per call.
type Client struct {
	config *Config
	http   *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	client := &Client{
		config: config,
		http: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
	}

	logger.Info("whatsapp client initialized", "base_url", config.BaseURL, "timeout", config.Timeout)

	return client, nil
}

// SendMessage dispatches one outbound payload and returns the provider
// message id.
func (c *Client) SendMessage(ctx context.Context, accessToken, phoneNumberID string, msg *OutboundMessage) (string, error) {
	msg.MessagingProduct = "whatsapp"

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.config.BaseURL, phoneNumberID)

	startTime := time.Now()
	respBody, err := c.doRequest(ctx, "POST", url, accessToken, "application/json", body)
	latency := time.Since(startTime).Milliseconds()
	if err != nil {
		return "", err
	}

	var resp SendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", ErrNoMessageID
	}

	logger.Info("message sent to provider", "message_id", resp.Messages[0].ID, "type", msg.Type, "latency_ms", latency)

	return resp.Messages[0].ID, nil
}

// GetMediaDescriptor fetches the short-lived download URL and MIME type
// for a provider-hosted media object.
func (c *Client) GetMediaDescriptor(ctx context.Context, accessToken, mediaID string) (*MediaDescriptor, error) {
	url := fmt.Sprintf("%s/%s", c.config.BaseURL, mediaID)

	respBody, err := c.doRequest(ctx, "GET", url, accessToken, "", nil)
	if err != nil {
		return nil, err
	}

	var desc MediaDescriptor
	if err := json.Unmarshal(respBody, &desc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal media descriptor: %w", err)
	}
	return &desc, nil
}

// DownloadMedia fetches raw media bytes from a descriptor URL. The URL is
// short-lived and requires the same bearer token.
func (c *Client) DownloadMedia(ctx context.Context, accessToken, url string) ([]byte, string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod("GET")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return nil, "", fmt.Errorf("media download failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, "", &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	data := make([]byte, len(resp.Body()))
	copy(data, resp.Body())
	mimeType := string(resp.Header.ContentType())

	return data, mimeType, nil
}

// UploadMedia pushes media bytes to the provider and returns the minted
// media id, for use as a template header handle.
func (c *Client) UploadMedia(ctx context.Context, accessToken, phoneNumberID string, data []byte, mimeType, filename string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename)}
	header["Content-Type"] = []string{mimeType}
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.WriteField("messaging_product", "whatsapp"); err != nil {
		return "", err
	}
	if err := writer.WriteField("type", mimeType); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s/media", c.config.BaseURL, phoneNumberID)

	respBody, err := c.doRequest(ctx, "POST", url, accessToken, writer.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", err
	}

	var resp UploadResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal upload response: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("provider upload response carried no media id")
	}
	return resp.ID, nil
}

// doRequest performs one HTTP request with a bounded deadline.
func (c *Client) doRequest(ctx context.Context, method, url, accessToken, contentType string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	if body != nil {
		req.SetBody(body)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < fasthttp.StatusOK || statusCode >= 300 {
		return nil, &APIError{StatusCode: statusCode, Body: string(resp.Body())}
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(c.config.Timeout)
}
