package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"medtrack-service/config"
	"medtrack-service/internal/models"
	"medtrack-service/internal/util"

	"go.uber.org/zap"
)

// Source fetches raw merchant transactions from local fixture files or the
// Knot mock/dev endpoints.
type Source struct {
	cfg    config.KnotConfig
	client *http.Client
	logger *zap.Logger
}

// NewSource creates a transaction source
func NewSource(cfg config.KnotConfig) *Source {
	return &Source{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: util.GetLogger(),
	}
}

type syncRequest struct {
	MerchantID     int64  `json:"merchant_id"`
	ExternalUserID string `json:"external_user_id"`
	Limit          int    `json:"limit"`
}

type syncResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
}

// FetchRawTransactions returns up to limit raw transactions for one merchant.
// A transport failure surfaces as a SourceUnavailableError.
func (s *Source) FetchRawTransactions(ctx context.Context, source, externalUserID string, merchantID int64, limit int) ([]json.RawMessage, error) {
	switch source {
	case "local":
		return s.fetchLocal(merchantID, limit)
	case "mock":
		return s.fetchRemote(ctx, s.cfg.MockURL+"/transactions/sync", "", source, externalUserID, merchantID, limit)
	case "dev":
		return s.fetchRemote(ctx, s.cfg.DevURL+"/transactions/sync", s.cfg.BasicAuth, source, externalUserID, merchantID, limit)
	default:
		return nil, &models.SourceUnavailableError{
			Source:     source,
			MerchantID: merchantID,
			Err:        fmt.Errorf("unsupported data source %q", source),
		}
	}
}

func (s *Source) fetchLocal(merchantID int64, limit int) ([]json.RawMessage, error) {
	pattern := filepath.Join(s.cfg.DataDir, fmt.Sprintf("*_%d_*.json", merchantID))
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil, &models.SourceUnavailableError{
			Source:     "local",
			MerchantID: merchantID,
			Err:        fmt.Errorf("no fixture file matching %s", pattern),
		}
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, &models.SourceUnavailableError{Source: "local", MerchantID: merchantID, Err: err}
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &models.SourceUnavailableError{
			Source:     "local",
			MerchantID: merchantID,
			Err:        fmt.Errorf("fixture for merchant %d must be a JSON array: %w", merchantID, err),
		}
	}

	if limit > 0 && len(raws) > limit {
		raws = raws[:limit]
	}
	return raws, nil
}

func (s *Source) fetchRemote(ctx context.Context, url, basicAuth, source, externalUserID string, merchantID int64, limit int) ([]json.RawMessage, error) {
	body, err := json.Marshal(syncRequest{
		MerchantID:     merchantID,
		ExternalUserID: externalUserID,
		Limit:          limit,
	})
	if err != nil {
		return nil, &models.SourceUnavailableError{Source: source, MerchantID: merchantID, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &models.SourceUnavailableError{Source: source, MerchantID: merchantID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if basicAuth != "" {
		req.Header.Set("Authorization", "Basic "+basicAuth)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.SourceUnavailableError{Source: source, MerchantID: merchantID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.SourceUnavailableError{
			Source:     source,
			MerchantID: merchantID,
			Err:        fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url),
		}
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &models.SourceUnavailableError{Source: source, MerchantID: merchantID, Err: err}
	}

	// The endpoint returns either a bare array or {"transactions": [...]}.
	var raws []json.RawMessage
	if err := json.Unmarshal(payload, &raws); err != nil {
		var wrapped syncResponse
		if err := json.Unmarshal(payload, &wrapped); err != nil {
			return nil, &models.SourceUnavailableError{Source: source, MerchantID: merchantID, Err: err}
		}
		raws = wrapped.Transactions
	}

	s.logger.Debug("Fetched transactions",
		zap.String("source", source),
		zap.Int64("merchant_id", merchantID),
		zap.Int("count", len(raws)))

	if limit > 0 && len(raws) > limit {
		raws = raws[:limit]
	}
	return raws, nil
}
