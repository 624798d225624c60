// internal/certificate/content/ipfs.go
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "certificate-workers/internal/common/errors"
	apphttp "certificate-workers/internal/common/http"
	"certificate-workers/internal/common/logger"
)

// IPFSClient talks to a Kubo node over its HTTP RPC API.
type IPFSClient struct {
	apiURL string
	http   *apphttp.Client
	logger logger.Logger
}

// NewIPFSClient takes the API base, e.g. http://127.0.0.1:5001/api/v0.
func NewIPFSClient(apiURL string, timeout time.Duration, log logger.Logger) *IPFSClient {
	return &IPFSClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		http:   apphttp.NewClient(timeout),
		logger: log.WithFields(map[string]interface{}{"component": "ipfs"}),
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func (c *IPFSClient) Put(ctx context.Context, name string, data []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/add?pin=true", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipfs add: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.statusError("add", resp)
	}

	var out addResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ipfs add: decode response: %w", err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("ipfs add: empty hash in response")
	}

	c.logger.Debug("content stored", map[string]interface{}{"cid": out.Hash, "name": name, "size": len(data)})
	return out.Hash, nil
}

func (c *IPFSClient) Get(ctx context.Context, cid string) ([]byte, error) {
	resp, err := c.call(ctx, "cat", cid)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError("cat", resp)
	}
	return io.ReadAll(resp.Body)
}

func (c *IPFSClient) Exists(ctx context.Context, cid string) (bool, error) {
	resp, err := c.call(ctx, "object/stat", cid)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK, nil
}

// Delete unpins cid; content that was never pinned counts as deleted.
func (c *IPFSClient) Delete(ctx context.Context, cid string) error {
	resp, err := c.call(ctx, "pin/rm", cid)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	serr := c.statusError("pin/rm", resp)
	if strings.Contains(serr.Error(), "not pinned") {
		return nil
	}
	return serr
}

func (c *IPFSClient) call(ctx context.Context, op, cid string) (*http.Response, error) {
	u := c.apiURL + "/" + op + "?arg=" + url.QueryEscape(cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs %s: %w", op, err)
	}
	return resp, nil
}

func (c *IPFSClient) statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := string(b)
	var rpcErr struct {
		Message string `json:"Message"`
	}
	if json.Unmarshal(b, &rpcErr) == nil && rpcErr.Message != "" {
		msg = rpcErr.Message
	}

	if strings.Contains(msg, "not found") || strings.Contains(msg, "no link named") {
		return fmt.Errorf("%w: ipfs %s: %s", apperrors.ErrNotFound, op, msg)
	}
	return fmt.Errorf("ipfs %s: status %d: %s", op, resp.StatusCode, msg)
}
