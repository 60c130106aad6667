package refprice

import (
	"context"
	"errors"
	"testing"
	"time"

	"medtrack-service/config"
	"medtrack-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `CODE,MIN,MODE,MAX,COMMENTS
314076,5.0,8.0,15.0,lisinopril 20 MG Oral Tablet
860975,9.0,12.5,20.0,24 HR metFORMIN hydrochloride 500 MG Extended Release Oral Tablet
999999,,,,"row without prices"
`

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

type memStore struct {
	payload   *TablePayload
	loadErr   error
	storeErr  error
	loadCalls int
	saves     int
}

func (s *memStore) LoadReferenceTable(context.Context) (*TablePayload, error) {
	s.loadCalls++
	return s.payload, s.loadErr
}

func (s *memStore) StoreReferenceTable(_ context.Context, payload *TablePayload) error {
	if s.storeErr != nil {
		return s.storeErr
	}
	s.payload = payload
	s.saves++
	return nil
}

func countingFetcher(body string, err error, calls *int) Fetcher {
	return func(context.Context, string) ([]byte, error) {
		*calls++
		if err != nil {
			return nil, err
		}
		return []byte(body), nil
	}
}

func testReferenceConfig() config.ReferenceConfig {
	return config.ReferenceConfig{
		URL:        "https://example.invalid/medications.csv",
		MaxAgeDays: 14,
	}
}

func TestCacheFetchesOnceWhileFresh(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	store := &memStore{}
	var calls int
	cache := NewCache(testReferenceConfig(), store, countingFetcher(sampleCSV, nil, &calls), clock.Now)

	entry, err := cache.GetReference(context.Background(), "314076")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "lisinopril 20 MG Oral Tablet", entry.Description)

	amount, ok := entry.Amount()
	require.True(t, ok)
	assert.Equal(t, 8.0, amount)

	// Second lookup inside the max age reuses the table.
	clock.t = clock.t.AddDate(0, 0, 13)
	_, err = cache.GetReference(context.Background(), "860975")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// The good table was persisted for the stale fallback.
	assert.Equal(t, 1, store.saves)
	require.NotNil(t, store.payload)
	assert.Len(t, store.payload.Records, 3)
}

func TestCacheRefetchesAfterMaxAge(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	var calls int
	cache := NewCache(testReferenceConfig(), nil, countingFetcher(sampleCSV, nil, &calls), clock.Now)

	_, err := cache.GetReference(context.Background(), "314076")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	clock.t = clock.t.AddDate(0, 0, 15)
	_, err = cache.GetReference(context.Background(), "314076")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheServesStaleTableOnFetchFailure(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: fetchedAt.AddDate(0, 0, 30)}

	mode := 8.0
	store := &memStore{payload: &TablePayload{
		FetchedAt: fetchedAt,
		Records: []models.ReferencePriceEntry{
			{Code: "314076", Description: "lisinopril 20 MG Oral Tablet", NormalizedName: "lisinopril 20 mg oral tablet", Mode: &mode},
		},
	}}

	var calls int
	cache := NewCache(testReferenceConfig(), store, countingFetcher("", errors.New("upstream down"), &calls), clock.Now)

	entry, err := cache.GetReference(context.Background(), "314076")

	// The failure surfaces as a warning, and the persisted table still serves.
	var fetchErr *models.ReferenceFetchError
	require.ErrorAs(t, err, &fetchErr)
	require.NotNil(t, entry)
	assert.Equal(t, "314076", entry.Code)
	assert.Equal(t, 1, calls)
}

func TestCacheBacksOffBetweenFailedFetches(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	var calls int
	cache := NewCache(testReferenceConfig(), nil, countingFetcher("", errors.New("upstream down"), &calls), clock.Now)

	_, err := cache.GetReference(context.Background(), "314076")
	assert.Error(t, err)
	assert.Equal(t, 1, calls)

	// Within the retry interval no new fetch fires, but with no table at all
	// every lookup still reports the outage.
	clock.t = clock.t.Add(10 * time.Second)
	_, err = cache.GetReference(context.Background(), "314076")
	var fetchErr *models.ReferenceFetchError
	assert.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 1, calls)

	clock.t = clock.t.Add(2 * time.Minute)
	_, err = cache.GetReference(context.Background(), "314076")
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheStaleTableQuietInsideBackoff(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: fetchedAt.AddDate(0, 0, 30)}

	mode := 8.0
	store := &memStore{payload: &TablePayload{
		FetchedAt: fetchedAt,
		Records: []models.ReferencePriceEntry{
			{Code: "314076", Description: "lisinopril 20 MG Oral Tablet", NormalizedName: "lisinopril 20 mg oral tablet", Mode: &mode},
		},
	}}

	var calls int
	cache := NewCache(testReferenceConfig(), store, countingFetcher("", errors.New("upstream down"), &calls), clock.Now)

	_, err := cache.GetReference(context.Background(), "314076")
	assert.Error(t, err)

	// The stale table keeps serving; inside the backoff the degradation was
	// already reported once and lookups stay clean.
	clock.t = clock.t.Add(10 * time.Second)
	entry, err := cache.GetReference(context.Background(), "314076")
	assert.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, calls)
}

func TestCacheLookupByNameAndSubstring(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	var calls int
	cache := NewCache(testReferenceConfig(), nil, countingFetcher(sampleCSV, nil, &calls), clock.Now)

	exact, err := cache.GetReference(context.Background(), "Lisinopril 20 MG Oral Tablet")
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.Equal(t, "314076", exact.Code)

	partial, err := cache.GetReference(context.Background(), "metformin hydrochloride 500 mg")
	require.NoError(t, err)
	require.NotNil(t, partial)
	assert.Equal(t, "860975", partial.Code)

	missing, err := cache.GetReference(context.Background(), "acetaminophen 500 mg")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestParseTable(t *testing.T) {
	records, err := parseTable([]byte(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "314076", records[0].Code)
	assert.Equal(t, "lisinopril 20 mg oral tablet", records[0].NormalizedName)
	require.NotNil(t, records[0].Min)
	assert.Equal(t, 5.0, *records[0].Min)

	// Price columns may be empty; Amount reports the gap.
	_, ok := records[2].Amount()
	assert.False(t, ok)
}

func TestParseTableRejectsMissingHeader(t *testing.T) {
	_, err := parseTable([]byte("FOO,BAR\n1,2\n"))
	assert.Error(t, err)
}
