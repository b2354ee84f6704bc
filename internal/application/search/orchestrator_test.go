package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func windowDocs(n int) []DocChunk {
	types := []string{"Guide", "Report", "Toolkit", "Dataset"}
	out := make([]DocChunk, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, DocChunk{
			ID:      fmt.Sprintf("doc-%02d", i),
			Title:   fmt.Sprintf("Resource %d", i),
			Type:    types[i%len(types)],
			Topic:   "guidance",
			Country: "Kenya",
			Year:    2018 + i%6,
			Excerpt: "excerpt",
			Score:   1 - float64(i)/100,
		})
	}
	return out
}

type harness struct {
	embedder  *fakeEmbedder
	store     *fakeStore
	cache     *mapCache
	intent    *fakeIntent
	discovery *fakeDiscovery
	orch      *Orchestrator
}

func newHarness(docs []DocChunk) *harness {
	h := &harness{
		embedder:  &fakeEmbedder{},
		store:     &fakeStore{docs: docs},
		cache:     newMapCache(),
		intent:    &fakeIntent{intent: &Intent{Category: "Guide", Confidence: 0.8}},
		discovery: &fakeDiscovery{n: 7},
	}
	h.orch = NewOrchestrator(Config{}, Dependencies{
		Embedder:  h.embedder,
		Store:     h.store,
		Cache:     h.cache,
		Answer:    &fakeAnswer{bullets: []string{"point one", " ", "point two"}},
		Intent:    h.intent,
		Discovery: h.discovery,
		Context:   &fakeContext{},
	})
	return h
}

func TestSearch_FastScenario(t *testing.T) {
	h := newHarness(windowDocs(40))

	out, err := h.orch.Search(context.Background(), Query{
		Text:    "disclosure guidance",
		Filters: Filters{Topic: "guidance"},
		Level:   LevelFast,
	})
	require.NoError(t, err)
	resp := out.Response

	require.NotNil(t, resp.Intent)
	assert.Equal(t, "Guide", resp.Intent.Category)
	assert.Len(t, resp.Connections, 5)
	assert.Len(t, resp.FollowUpQuestions, 5)
	assert.Empty(t, resp.InsightClusters)
	assert.Empty(t, resp.KnowledgeGaps)
	assert.Empty(t, resp.HiddenGems)
	assert.Nil(t, resp.LivingContext)

	assert.Equal(t, []string{"point one", "point two"}, resp.Answer)
	assert.Len(t, resp.Items, 10)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.PageSize)
	assert.True(t, resp.HasMore)

	require.Len(t, h.store.searches, 1)
	assert.Equal(t, 30, h.store.searches[0].Limit)
	assert.Equal(t, "guidance", h.store.searches[0].Filter.Topic)

	// related 不包含当前页条目
	shown := map[string]bool{}
	for _, it := range resp.Items {
		shown[it.ID] = true
	}
	require.NotEmpty(t, resp.Related)
	for _, r := range resp.Related {
		assert.False(t, shown[r.ID], r.ID)
	}
	require.NotNil(t, resp.Facets)
	assert.Equal(t, "guidance", resp.Facets.TopTopics[0].Value)
}

func TestSearch_IdempotentWithinTTL(t *testing.T) {
	h := newHarness(windowDocs(12))
	q := Query{Text: "Water policy", Level: LevelFull}

	first, err := h.orch.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := h.orch.Search(context.Background(), Query{Text: "  water   POLICY ", Level: LevelFull})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, []byte(first.Payload), []byte(second.Payload))

	assert.Equal(t, 1, h.embedder.callCount())
	assert.Equal(t, 1, h.store.searchCount())
	assert.Equal(t, 1, h.cache.sets)
}

func TestSearch_FilterCaseVariantNotServedFromCache(t *testing.T) {
	docs := windowDocs(6)
	for i := range docs {
		docs[i].Topic = "Guidance"
	}
	h := newHarness(docs)
	h.store.exactTopic = true

	first, err := h.orch.Search(context.Background(), Query{Text: "Disclosure", Filters: Filters{Topic: "Guidance"}, Level: LevelMinimal})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Len(t, first.Response.Items, 6)

	second, err := h.orch.Search(context.Background(), Query{Text: "disclosure", Filters: Filters{Topic: "guidance"}, Level: LevelMinimal})
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
	assert.Empty(t, second.Response.Items)

	require.Equal(t, 2, h.store.searchCount())
	assert.Equal(t, "Guidance", h.store.searches[0].Filter.Topic)
	assert.Equal(t, "guidance", h.store.searches[1].Filter.Topic)
	// 查询文本按规范化后的形式嵌入，与缓存键一致
	assert.Equal(t, []string{"disclosure", "disclosure"}, h.embedder.calls)
}

func TestSearch_PayloadMatchesResponse(t *testing.T) {
	h := newHarness(windowDocs(3))
	out, err := h.orch.Search(context.Background(), Query{Text: "anything"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Payload, &decoded))
	for _, field := range []string{"answer", "items", "page", "pageSize", "hasMore", "intent",
		"followUpQuestions", "connections", "insightClusters", "knowledgeGaps", "hiddenGems"} {
		assert.Contains(t, decoded, field)
	}
	assert.False(t, decoded["hasMore"].(bool))
}

func TestSearch_AllEnrichmentFailuresDegrade(t *testing.T) {
	h := newHarness(windowDocs(8))
	h.orch = NewOrchestrator(Config{}, Dependencies{
		Embedder:  h.embedder,
		Store:     h.store,
		Cache:     h.cache,
		Answer:    &fakeAnswer{err: errBoom},
		Intent:    &fakeIntent{err: errBoom},
		Discovery: &fakeDiscovery{err: errBoom},
		Context:   &fakeContext{err: errBoom},
	})

	out, err := h.orch.Search(context.Background(), Query{Text: "anything", Level: LevelFull})
	require.NoError(t, err)
	resp := out.Response
	assert.NotEmpty(t, resp.Items)
	assert.Nil(t, resp.Intent)
	assert.NotNil(t, resp.Answer)
	assert.Empty(t, resp.Answer)
	assert.NotNil(t, resp.Connections)
	assert.Empty(t, resp.Connections)
	assert.Empty(t, resp.FollowUpQuestions)
	assert.Empty(t, resp.InsightClusters)
	assert.Empty(t, resp.KnowledgeGaps)
	assert.Empty(t, resp.HiddenGems)
}

func TestSearch_PanickingAnalysisDoesNotFailRequest(t *testing.T) {
	h := newHarness(windowDocs(8))
	h.orch = NewOrchestrator(Config{}, Dependencies{
		Embedder:  h.embedder,
		Store:     h.store,
		Cache:     h.cache,
		Discovery: &fakeDiscovery{panic: true},
	})

	out, err := h.orch.Search(context.Background(), Query{Text: "anything", Level: LevelFull})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Response.Items)
}

func TestSearch_FatalErrorsDoNotPoisonCache(t *testing.T) {
	h := newHarness(windowDocs(5))
	h.embedder.err = errBoom
	_, err := h.orch.Search(context.Background(), Query{Text: "anything"})
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Zero(t, h.cache.sets)
	assert.Zero(t, h.store.searchCount())

	h.embedder.err = nil
	h.store.searchErr = errBoom
	_, err = h.orch.Search(context.Background(), Query{Text: "anything"})
	assert.ErrorIs(t, err, ErrRetrieval)
	assert.Zero(t, h.cache.sets)
}

func TestSearch_RejectsInvalidQueriesBeforeExternalCalls(t *testing.T) {
	h := newHarness(windowDocs(5))
	bad := []Query{
		{Text: "   "},
		{Text: string(make([]byte, 600))},
		{Text: "ok", Level: "turbo"},
		{Text: "ok", SortBy: "random"},
		{Text: "ok", Filters: Filters{Year: 2020, YearFrom: 2019}},
		{Text: "ok", Filters: Filters{YearFrom: 2022, YearTo: 2020}},
	}
	for _, q := range bad {
		_, err := h.orch.Search(context.Background(), q)
		assert.ErrorIs(t, err, ErrInvalidQuery, "%+v", q.Filters)
	}
	assert.Zero(t, h.embedder.callCount())
}

func TestSearch_PageBeyondWindow(t *testing.T) {
	h := newHarness(windowDocs(45))

	out, err := h.orch.Search(context.Background(), Query{Text: "deep", Page: 4, PageSize: 10})
	require.NoError(t, err)

	require.Len(t, h.store.searches, 2)
	assert.Equal(t, 30, h.store.searches[1].Offset)
	assert.Equal(t, 10, h.store.searches[1].Limit)
	assert.Len(t, out.Response.Items, 10)
	assert.Equal(t, "doc-30", out.Response.Items[0].ID)
	assert.True(t, out.Response.HasMore)
}

func TestSearch_LastPageInsideWindow(t *testing.T) {
	h := newHarness(windowDocs(25))

	out, err := h.orch.Search(context.Background(), Query{Text: "deep", Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, out.Response.Items, 5)
	assert.False(t, out.Response.HasMore)
}

func TestSearch_SortNewestReordersWindow(t *testing.T) {
	docs := []DocChunk{
		{ID: "old", Type: "A", Year: 2010, Score: 0.9},
		{ID: "none", Type: "B", Score: 0.8},
		{ID: "new", Type: "C", Year: 2024, Score: 0.7},
	}
	h := newHarness(docs)

	out, err := h.orch.Search(context.Background(), Query{Text: "x", SortBy: SortNewest})
	require.NoError(t, err)
	assert.Equal(t, "new", out.Response.Items[0].ID)

	out, err = h.orch.Search(context.Background(), Query{Text: "x", SortBy: SortOldest})
	require.NoError(t, err)
	got := []string{}
	for _, it := range out.Response.Items {
		got = append(got, it.ID)
	}
	assert.Equal(t, []string{"old", "new", "none"}, got)
}

func TestSearch_DateSortStopsAtWindow(t *testing.T) {
	h := newHarness(windowDocs(45))

	out, err := h.orch.Search(context.Background(), Query{Text: "x", SortBy: SortNewest, Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, out.Response.Items, 10)
	assert.False(t, out.Response.HasMore)
	assert.Equal(t, 1, h.store.searchCount())

	_, err = h.orch.Search(context.Background(), Query{Text: "x", SortBy: SortNewest, Page: 4, PageSize: 10})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	_, err = h.orch.Search(context.Background(), Query{Text: "x", SortBy: SortOldest, Page: 2, PageSize: 20})
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Equal(t, 1, h.store.searchCount())

	// 相关度排序不受窗口限制
	out, err = h.orch.Search(context.Background(), Query{Text: "x", Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, out.Response.Items, 10)
}

func TestSearch_DateSortFirstPageLargerThanWindow(t *testing.T) {
	h := newHarness(windowDocs(45))

	out, err := h.orch.Search(context.Background(), Query{Text: "x", SortBy: SortNewest, PageSize: 40})
	require.NoError(t, err)
	require.Len(t, out.Response.Items, 40)
	assert.False(t, out.Response.HasMore)
	for i := 1; i < len(out.Response.Items); i++ {
		assert.GreaterOrEqual(t, out.Response.Items[i-1].Year, out.Response.Items[i].Year)
	}
}

func TestSearch_ConcurrentRequestsAreSafe(t *testing.T) {
	h := newHarness(windowDocs(30))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.orch.Search(context.Background(), Query{Text: fmt.Sprintf("q%d", i%4)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}

func TestPreviewIntent(t *testing.T) {
	h := newHarness(nil)

	_, err := h.orch.PreviewIntent(context.Background(), "ab")
	assert.ErrorIs(t, err, ErrInvalidQuery)
	assert.Zero(t, h.intent.calls)

	intent, err := h.orch.PreviewIntent(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Guide", intent.Category)
}

func TestPreviewIntent_CoalescesConcurrentCalls(t *testing.T) {
	h := newHarness(nil)
	h.intent.block = make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.orch.PreviewIntent(context.Background(), "Climate finance")
		}()
	}
	// 等待所有调用进入 singleflight 后再放行
	time.Sleep(50 * time.Millisecond)
	close(h.intent.block)
	wg.Wait()

	h.intent.mu.Lock()
	defer h.intent.mu.Unlock()
	assert.Equal(t, 1, h.intent.calls)
}

func TestPreviewIntent_LeaderCancelDoesNotFailFollowers(t *testing.T) {
	h := newHarness(nil)
	h.intent.block = make(chan struct{})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		_, _ = h.orch.PreviewIntent(leaderCtx, "Climate finance")
	}()
	require.Eventually(t, func() bool {
		h.intent.mu.Lock()
		defer h.intent.mu.Unlock()
		return h.intent.calls == 1
	}, time.Second, 5*time.Millisecond)

	var (
		followerIntent *Intent
		followerErr    error
		wg             sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		followerIntent, followerErr = h.orch.PreviewIntent(context.Background(), "climate  finance")
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	close(h.intent.block)
	wg.Wait()
	<-leaderDone

	require.NoError(t, followerErr)
	assert.Equal(t, "Guide", followerIntent.Category)

	h.intent.mu.Lock()
	defer h.intent.mu.Unlock()
	assert.Equal(t, 1, h.intent.calls)
	assert.NoError(t, h.intent.ctxErr)
	assert.True(t, h.intent.deadline)
}

func TestOrchestrator_Recommend(t *testing.T) {
	h := newHarness(windowDocs(12))
	res, err := h.orch.Recommend(context.Background(), RecommendRequest{Query: "q", SelectedIDs: []string{"doc-00"}, Limit: 4})
	require.NoError(t, err)
	assert.NotContains(t, recIDs(res.Recommendations), "doc-00")
	assert.LessOrEqual(t, len(res.Recommendations), 4)
}
