// internal/certificate/ledger/webase.go
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"certificate-workers/internal/common/config"
	apphttp "certificate-workers/internal/common/http"
	"certificate-workers/internal/common/logger"

	"golang.org/x/time/rate"
)

// DefaultContractABI covers the three contract functions this service calls.
const DefaultContractABI = `[` +
	`{"constant":false,"inputs":[{"name":"certificateNo","type":"string"},{"name":"fileHash","type":"string"},{"name":"expiryDate","type":"uint256"}],"name":"storeCertificate","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"},` +
	`{"constant":true,"inputs":[{"name":"certificateNo","type":"string"},{"name":"fileHash","type":"string"}],"name":"verifyCertificate","outputs":[{"name":"isValid","type":"bool"},{"name":"timestamp","type":"uint256"},{"name":"status","type":"uint8"}],"payable":false,"stateMutability":"view","type":"function"},` +
	`{"constant":false,"inputs":[{"name":"certificateNo","type":"string"}],"name":"revokeCertificate","outputs":[{"name":"","type":"bool"}],"payable":false,"stateMutability":"nonpayable","type":"function"}` +
	`]`

// WebaseClient calls the certificate contract through WeBASE-Front's transaction API.
type WebaseClient struct {
	baseURL         string
	groupID         int
	userAddress     string
	contractAddress string
	abi             json.RawMessage
	http            *apphttp.Client
	limiter         *rate.Limiter
	logger          logger.Logger
}

func NewWebaseClient(cfg config.WeBASEConfig, log logger.Logger) *WebaseClient {
	abi := cfg.ContractABI
	if abi == "" {
		abi = DefaultContractABI
	}
	return &WebaseClient{
		baseURL:         strings.TrimRight(cfg.URL, "/"),
		groupID:         cfg.GroupID,
		userAddress:     cfg.UserAddress,
		contractAddress: cfg.ContractAddress,
		abi:             json.RawMessage(abi),
		http:            apphttp.NewClient(config.GetDuration(cfg.Timeout)),
		limiter:         rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		logger:          log.WithFields(map[string]interface{}{"component": "webase"}),
	}
}

type transRequest struct {
	GroupID         int             `json:"groupId"`
	User            string          `json:"user"`
	ContractAddress string          `json:"contractAddress"`
	FuncName        string          `json:"funcName"`
	ContractAbi     json.RawMessage `json:"contractAbi"`
	FuncParam       []interface{}   `json:"funcParam"`
}

type transResponse struct {
	TransactionHash string            `json:"transactionHash"`
	BlockNumber     json.RawMessage   `json:"blockNumber"`
	Status          string            `json:"status"`
	Output          []json.RawMessage `json:"output"`
	Code            *int              `json:"code"`
	ErrorMessage    string            `json:"errorMessage"`
}

func (c *WebaseClient) Store(ctx context.Context, certificateNo, fileHash string) (Receipt, error) {
	resp, err := c.transact(ctx, "storeCertificate", certificateNo, fileHash, 0)
	if err != nil {
		return Receipt{}, err
	}

	block, _ := parseInt(resp.BlockNumber)
	if block == 0 {
		// Some WeBASE versions omit the block on the receipt.
		if n, err := c.BlockNumber(ctx); err == nil {
			block = n
		}
	}

	c.logger.Info("certificate anchored", map[string]interface{}{
		"certificateNo": certificateNo,
		"txHash":        resp.TransactionHash,
		"blockNumber":   block,
	})
	return Receipt{TxHash: resp.TransactionHash, BlockNumber: block}, nil
}

func (c *WebaseClient) Verify(ctx context.Context, certificateNo, fileHash string) (Attestation, error) {
	resp, err := c.transact(ctx, "verifyCertificate", certificateNo, fileHash)
	if err != nil {
		return Attestation{}, err
	}
	if len(resp.Output) < 3 {
		return Attestation{}, fmt.Errorf("webase verifyCertificate: expected 3 outputs, got %d", len(resp.Output))
	}

	valid, err := parseBool(resp.Output[0])
	if err != nil {
		return Attestation{}, fmt.Errorf("webase verifyCertificate: isValid: %w", err)
	}
	ts, err := parseInt(resp.Output[1])
	if err != nil {
		return Attestation{}, fmt.Errorf("webase verifyCertificate: timestamp: %w", err)
	}
	status, err := parseInt(resp.Output[2])
	if err != nil {
		return Attestation{}, fmt.Errorf("webase verifyCertificate: status: %w", err)
	}

	return Attestation{Valid: valid, Timestamp: ts, Status: Status(status)}, nil
}

func (c *WebaseClient) Revoke(ctx context.Context, certificateNo string) (Receipt, error) {
	resp, err := c.transact(ctx, "revokeCertificate", certificateNo)
	if err != nil {
		return Receipt{}, err
	}
	block, _ := parseInt(resp.BlockNumber)
	return Receipt{TxHash: resp.TransactionHash, BlockNumber: block}, nil
}

// BlockNumber returns the current chain height; it doubles as a connectivity probe.
func (c *WebaseClient) BlockNumber(ctx context.Context) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	var raw json.RawMessage
	url := fmt.Sprintf("%s/WeBASE-Front/%d/web3/blockNumber", c.baseURL, c.groupID)
	if err := c.http.GetJSON(ctx, url, &raw); err != nil {
		return 0, fmt.Errorf("webase blockNumber: %w", err)
	}
	return parseInt(raw)
}

func (c *WebaseClient) transact(ctx context.Context, funcName string, params ...interface{}) (*transResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := transRequest{
		GroupID:         c.groupID,
		User:            c.userAddress,
		ContractAddress: c.contractAddress,
		FuncName:        funcName,
		ContractAbi:     c.abi,
		FuncParam:       params,
	}

	var raw json.RawMessage
	start := time.Now()
	if err := c.http.PostJSON(ctx, c.baseURL+"/WeBASE-Front/trans/handle", req, &raw); err != nil {
		return nil, fmt.Errorf("webase %s: %w", funcName, err)
	}

	resp, err := decodeTransResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("webase %s: %w", funcName, err)
	}
	if resp.Code != nil && *resp.Code != 0 {
		return nil, fmt.Errorf("webase %s: code %d: %s", funcName, *resp.Code, resp.ErrorMessage)
	}
	if resp.Status != "" && resp.Status != "0x0" && resp.Status != "0" {
		return nil, fmt.Errorf("webase %s: transaction status %s", funcName, resp.Status)
	}

	c.logger.Debug("webase call", map[string]interface{}{
		"funcName":   funcName,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return resp, nil
}

// decodeTransResponse accepts both the receipt object and the bare output array returned for
// constant calls.
func decodeTransResponse(raw json.RawMessage) (*transResponse, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var out []json.RawMessage
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return &transResponse{Output: out}, nil
	}
	var resp transResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// parseInt handles JSON numbers, decimal strings and 0x-prefixed hex strings.
func parseInt(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, err
	}
	return strconv.ParseBool(s)
}
