package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulsetrader/internal/market"
)

// fakeSource 从预置切片按区间返回 K 线。
type fakeSource struct {
	candles []market.Candle
	err     error
	calls   int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(_ context.Context, req FetchRequest) ([]market.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []market.Candle
	for _, c := range f.candles {
		if c.OpenTime < req.Start {
			continue
		}
		if req.End > 0 && c.OpenTime > req.End {
			continue
		}
		out = append(out, c)
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	return out, nil
}

func newTestService(t *testing.T, src CandleSource) (*Service, *Store) {
	t.Helper()
	store := newTestStore(t)
	svc, err := NewService(ServiceConfig{
		Store:           store,
		Sources:         map[string]CandleSource{"fake": src},
		RateLimitPerMin: 60000,
		MaxBatch:        500,
		MaxConcurrent:   2,
	})
	require.NoError(t, err)
	return svc, store
}

func waitJob(t *testing.T, svc *Service, id string) FetchJob {
	t.Helper()
	var snap FetchJob
	require.Eventually(t, func() bool {
		job, ok := svc.JobSnapshot(id)
		if !ok {
			return false
		}
		snap = job
		return job.Status == JobStatusDone || job.Status == JobStatusPartial || job.Status == JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return snap
}

func TestSubmitFetchFillsGaps(t *testing.T) {
	src := &fakeSource{candles: hourCandles(hourMillis, 10, 11, 12, 13, 14)}
	svc, store := newTestService(t, src)

	job, err := svc.SubmitFetch(FetchParams{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Start: hourMillis, End: 5 * hourMillis,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), job.Total)

	snap := waitJob(t, svc, job.ID)
	assert.Equal(t, JobStatusDone, snap.Status)
	assert.Empty(t, snap.Missing)

	got, err := store.RangeCandles(context.Background(), "BTCUSDT", "1h", hourMillis, 5*hourMillis)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestSubmitFetchSkipsCompleteRange(t *testing.T) {
	src := &fakeSource{candles: hourCandles(hourMillis, 10, 11, 12)}
	svc, store := newTestService(t, src)

	_, err := store.InsertCandles(context.Background(), "BTCUSDT", "1h", src.candles)
	require.NoError(t, err)

	job, err := svc.SubmitFetch(FetchParams{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Start: hourMillis, End: 3 * hourMillis,
	})
	require.NoError(t, err)
	// 数据已完整，直接 done，不触发远端拉取
	assert.Equal(t, JobStatusDone, job.Status)
	assert.Equal(t, 0, src.calls)
}

func TestSubmitFetchPartialWhenSourceLacksData(t *testing.T) {
	// 源只有前 2 根，后 3 根拉不到
	src := &fakeSource{candles: hourCandles(hourMillis, 10, 11)}
	svc, _ := newTestService(t, src)

	job, err := svc.SubmitFetch(FetchParams{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Start: hourMillis, End: 5 * hourMillis,
	})
	require.NoError(t, err)

	snap := waitJob(t, svc, job.ID)
	assert.Equal(t, JobStatusPartial, snap.Status)
	assert.NotEmpty(t, snap.Missing)
	assert.NotEmpty(t, snap.Warnings)
}

func TestSubmitFetchSourceError(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("rate limited")}
	svc, _ := newTestService(t, src)

	job, err := svc.SubmitFetch(FetchParams{
		Symbol: "BTCUSDT", Timeframe: "1h",
		Start: hourMillis, End: 3 * hourMillis,
	})
	require.NoError(t, err)

	snap := waitJob(t, svc, job.ID)
	assert.Equal(t, JobStatusFailed, snap.Status)
	assert.Contains(t, snap.Message, "rate limited")
}

func TestSubmitFetchValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeSource{})

	_, err := svc.SubmitFetch(FetchParams{Timeframe: "1h", Start: 1, End: 2})
	assert.Error(t, err)
	_, err = svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "2s", Start: 1, End: 2})
	assert.Error(t, err)
	_, err = svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "1h", Exchange: "nope", Start: hourMillis, End: 2 * hourMillis})
	assert.Error(t, err)
	// 对齐后 start==end 不构成区间
	_, err = svc.SubmitFetch(FetchParams{Symbol: "BTCUSDT", Timeframe: "1h", Start: hourMillis, End: hourMillis + 1})
	assert.Error(t, err)
}

func TestServiceIntegrity(t *testing.T) {
	src := &fakeSource{}
	svc, store := newTestService(t, src)
	_, err := store.InsertCandles(context.Background(), "BTCUSDT", "1h", hourCandles(hourMillis, 10, 11))
	require.NoError(t, err)

	report, err := svc.Integrity(context.Background(), "BTCUSDT", "1h", hourMillis, 3*hourMillis)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Expected)
	assert.Equal(t, int64(2), report.Present)
	require.Len(t, report.Gaps, 1)
}
