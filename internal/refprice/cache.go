package refprice

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"medtrack-service/config"
	"medtrack-service/internal/insights"
	"medtrack-service/internal/models"
	"medtrack-service/internal/util"

	"go.uber.org/zap"
)

// sourceName identifies the external benchmark table in snapshot payloads.
const sourceName = "synthea_medication_costs"

// retryInterval bounds how often a failed fetch is retried; lookups inside a
// single run reuse the first outcome.
const retryInterval = time.Minute

// Fetcher retrieves the raw reference price table.
type Fetcher func(ctx context.Context, url string) ([]byte, error)

// Store persists the last good table so the stale fallback survives restarts.
// Implemented by the redis client.
type Store interface {
	LoadReferenceTable(ctx context.Context) (*TablePayload, error)
	StoreReferenceTable(ctx context.Context, payload *TablePayload) error
}

// TablePayload is the persisted form of a fetched reference table.
type TablePayload struct {
	FetchedAt time.Time                    `json:"fetched_at"`
	Records   []models.ReferencePriceEntry `json:"records"`
}

// Cache holds the process-wide reference price table with a max-age policy:
// populate on first access or when the table outlives the max age, otherwise
// reuse. On fetch failure the last good table keeps serving lookups.
type Cache struct {
	url    string
	maxAge time.Duration
	fetch  Fetcher
	store  Store
	now    func() time.Time
	logger *zap.Logger

	mu          sync.Mutex
	records     []models.ReferencePriceEntry
	byCode      map[string]*models.ReferencePriceEntry
	byName      map[string]*models.ReferencePriceEntry
	fetchedAt   time.Time
	storeLoaded bool
	lastAttempt time.Time
	lastErr     error
}

// NewCache creates a reference price cache. The fetcher and clock are
// injected so tests can use fakes; pass nil for the HTTP fetcher and
// wall-clock time.
func NewCache(cfg config.ReferenceConfig, store Store, fetch Fetcher, now func() time.Time) *Cache {
	if fetch == nil {
		fetch = httpFetcher(30 * time.Second)
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Cache{
		url:    cfg.URL,
		maxAge: time.Duration(cfg.MaxAgeDays) * 24 * time.Hour,
		fetch:  fetch,
		store:  store,
		now:    now,
		logger: util.GetLogger(),
	}
}

// SourceName returns the benchmark source identifier.
func (c *Cache) SourceName() string { return sourceName }

// GetReference looks up a benchmark entry by code, exact normalized name, or
// normalized-name substring. A fetch failure is reported once as a soft error
// while lookups continue against whatever table is available.
func (c *Cache) GetReference(ctx context.Context, skuOrName string) (*models.ReferencePriceEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	warn := c.ensureTable(ctx)

	if entry, ok := c.byCode[skuOrName]; ok {
		return entry, warn
	}

	normalized := insights.NormalizeMedicationName(skuOrName)
	if normalized == "" {
		return nil, warn
	}
	if entry, ok := c.byName[normalized]; ok {
		return entry, warn
	}
	for i := range c.records {
		norm := c.records[i].NormalizedName
		if norm == "" {
			continue
		}
		if strings.Contains(norm, normalized) || strings.Contains(normalized, norm) {
			return &c.records[i], warn
		}
	}
	return nil, warn
}

// ensureTable refreshes the table when missing or older than the max age.
// Caller holds the mutex, so at most one fetch is in flight.
func (c *Cache) ensureTable(ctx context.Context) error {
	now := c.now()

	if c.records == nil && !c.storeLoaded && c.store != nil {
		c.storeLoaded = true
		if payload, err := c.store.LoadReferenceTable(ctx); err == nil && payload != nil {
			c.setRecords(payload.Records, payload.FetchedAt)
		}
	}

	fresh := c.records != nil && now.Sub(c.fetchedAt) <= c.maxAge
	if fresh {
		return nil
	}
	if !c.lastAttempt.IsZero() && now.Sub(c.lastAttempt) < retryInterval {
		// Still inside the backoff window. With no table at all the run must
		// hear about the outage; with a stale table lookups degrade quietly.
		if c.records == nil {
			return c.lastErr
		}
		return nil
	}
	c.lastAttempt = now

	raw, err := c.fetch(ctx, c.url)
	if err != nil {
		fetchErr := &models.ReferenceFetchError{URL: c.url, Err: err}
		c.lastErr = fetchErr
		c.logger.Warn("Reference price fetch failed, serving cached table",
			zap.Error(fetchErr),
			zap.Int("cached_records", len(c.records)))
		return fetchErr
	}

	records, err := parseTable(raw)
	if err != nil {
		fetchErr := &models.ReferenceFetchError{URL: c.url, Err: err}
		c.lastErr = fetchErr
		c.logger.Warn("Reference price table unparsable, serving cached table", zap.Error(fetchErr))
		return fetchErr
	}

	c.lastErr = nil
	c.setRecords(records, now)
	if c.store != nil {
		if err := c.store.StoreReferenceTable(ctx, &TablePayload{FetchedAt: now, Records: records}); err != nil {
			c.logger.Warn("Failed to persist reference price table", zap.Error(err))
		}
	}
	c.logger.Info("Reference price table refreshed", zap.Int("records", len(records)))
	return nil
}

func (c *Cache) setRecords(records []models.ReferencePriceEntry, fetchedAt time.Time) {
	c.records = records
	c.fetchedAt = fetchedAt
	c.byCode = make(map[string]*models.ReferencePriceEntry, len(records))
	c.byName = make(map[string]*models.ReferencePriceEntry, len(records))
	for i := range records {
		entry := &records[i]
		if entry.Code != "" {
			c.byCode[entry.Code] = entry
		}
		if entry.NormalizedName != "" {
			if _, exists := c.byName[entry.NormalizedName]; !exists {
				c.byName[entry.NormalizedName] = entry
			}
		}
	}
}

// parseTable reads the Synthea medication costs CSV
// (CODE,MIN,MODE,MAX,COMMENTS).
func parseTable(raw []byte) ([]models.ReferencePriceEntry, error) {
	reader := csv.NewReader(strings.NewReader(string(raw)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	if _, ok := col["CODE"]; !ok {
		return nil, fmt.Errorf("csv header missing CODE column")
	}

	var records []models.ReferencePriceEntry
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}

		code := strings.TrimSpace(field(row, col, "CODE"))
		if code == "" {
			continue
		}
		description := strings.TrimSpace(field(row, col, "COMMENTS"))
		records = append(records, models.ReferencePriceEntry{
			Code:           code,
			Description:    description,
			NormalizedName: insights.NormalizeMedicationName(description),
			Min:            parsePrice(field(row, col, "MIN")),
			Mode:           parsePrice(field(row, col, "MODE")),
			Max:            parsePrice(field(row, col, "MAX")),
		})
	}
	return records, nil
}

func field(row []string, col map[string]int, name string) string {
	idx, ok := col[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parsePrice(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil
	}
	return &v
}

func httpFetcher(timeout time.Duration) Fetcher {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, url string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
}
