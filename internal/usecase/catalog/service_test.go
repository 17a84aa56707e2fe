package catalog

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/catalog/internal/cache"
	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/domain/event"
	"github.com/kailas-cloud/catalog/internal/transport/pool"
)

// --- Mocks ---

type response struct {
	body []byte
	err  error
}

type mockTransport struct {
	mu        sync.Mutex
	responses map[string]response
	calls     map[string]int
	urls      []string
	queries   []pool.Request
}

func newMockTransport() *mockTransport {
	return &mockTransport{responses: map[string]response{}, calls: map[string]int{}}
}

func (m *mockTransport) on(endpoint string, body string) *mockTransport {
	m.responses[endpoint] = response{body: []byte(body)}
	return m
}

func (m *mockTransport) onBytes(endpoint string, body []byte) *mockTransport {
	m.responses[endpoint] = response{body: body}
	return m
}

func (m *mockTransport) fail(endpoint string, err error) *mockTransport {
	m.responses[endpoint] = response{err: err}
	return m
}

func (m *mockTransport) Do(_ context.Context, req pool.Request) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[req.Endpoint]++
	m.urls = append(m.urls, req.URL)
	m.queries = append(m.queries, req)
	r, ok := m.responses[req.Endpoint]
	if !ok {
		return nil, domain.Errorf(domain.KindTransport, req.Endpoint, "unexpected request to %s", req.URL)
	}
	return r.body, r.err
}

func (m *mockTransport) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *mockTransport) count(endpoint string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[endpoint]
}

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Emit(e event.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) last(t *testing.T) event.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no events emitted")
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type())
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func testSettings() Settings {
	return Settings{
		Region:         "ie",
		Locale:         "en",
		SearchHost:     "https://search.test",
		CatalogHost:    "https://catalog.test",
		APIHost:        "https://api.test",
		SearchPageSize: 24,
		Rewrites: Rewriter{
			{From: "/glb_draco/", To: "/glb/"},
			{From: "_draco.glb", To: ".glb"},
		},
	}
}

func newTestService(tr *mockTransport) (*Service, *cache.Store, *recorder) {
	store := cache.NewMemory()
	rec := &recorder{}
	return New(tr, store, testSettings(), rec, nil), store, rec
}

var errReadOnly = errors.New("read-only fs")

// failingCache rejects writes of the listed artifacts.
type failingCache struct {
	*cache.Store
	fail map[cache.Artifact]bool
}

func (f failingCache) Write(id string, a cache.Artifact, data []byte) (string, error) {
	if f.fail[a] {
		return "", errReadOnly
	}
	return f.Store.Write(id, a, data)
}

func newFailingService(tr *mockTransport, fail ...cache.Artifact) (*Service, *cache.Store, *recorder) {
	store := cache.NewMemory()
	fc := failingCache{Store: store, fail: map[cache.Artifact]bool{}}
	for _, a := range fail {
		fc.fail[a] = true
	}
	rec := &recorder{}
	return New(tr, fc, testSettings(), rec, nil), store, rec
}

func glb(size int) []byte {
	data := make([]byte, size)
	copy(data, ModelMagic)
	return data
}

// --- Search ---

const searchBody = `{"searchResultPage":{"products":{"main":{"items":[
	{"product":{"id":"00346735","name":"BILLY","mainImageUrl":"https://img.test/a.jpg","mainImageAlt":"Bookcase","pipUrl":"https://shop.test/a"}},
	{"id":"10346736","name":"KALLAX","mainImageUrl":"https://img.test/b.jpg","mainImageAlt":"Shelf","pipUrl":"https://shop.test/b"},
	{"product":{"id":"20346737","name":"IVAR","mainImageAlt":"Shelf","pipUrl":"https://shop.test/c"}}
]}}}}`

func TestSearch_FiltersIncompleteItems(t *testing.T) {
	tr := newMockTransport().on(opSearch, searchBody)
	svc, _, rec := newTestService(tr)

	items, err := svc.Search(context.Background(), "shelf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "00346735" || items[1].Name != "KALLAX" {
		t.Errorf("unexpected items: %+v", items)
	}

	ev, ok := rec.last(t).(event.SearchCompleted)
	if !ok {
		t.Fatalf("expected SearchCompleted, got %T", rec.last(t))
	}
	if len(ev.Items) != 2 || ev.Query != "shelf" {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestSearch_QueryParameters(t *testing.T) {
	tr := newMockTransport().on(opSearch, `{"searchResultPage":{"products":{"main":{"items":[]}}}}`)
	svc, _, _ := newTestService(tr)

	if _, err := svc.Search(context.Background(), "  desk  "); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := tr.queries[0]
	if req.URL != "https://search.test/ie/en/search-result-page" {
		t.Errorf("url = %s", req.URL)
	}
	want := map[string]string{"q": "desk", "types": "PRODUCT", "size": "24", "c": "sr", "v": "20210322"}
	for k, v := range want {
		if got := req.Query.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
}

func TestSearch_IdentifierQueryUsesPageSizeOne(t *testing.T) {
	tr := newMockTransport().on(opSearch, `{"searchResultPage":{"products":{"main":{"items":[]}}}}`)
	svc, _, _ := newTestService(tr)

	if _, err := svc.Search(context.Background(), "003.467.35"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tr.queries[0].Query.Get("size"); got != "1" {
		t.Errorf("size = %s, want 1", got)
	}
}

func TestSearch_EmptyResultIsSuccess(t *testing.T) {
	tr := newMockTransport().on(opSearch, `{"searchResultPage":{"products":{"main":{"items":[]}}}}`)
	svc, _, rec := newTestService(tr)

	items, err := svc.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
	if _, ok := rec.last(t).(event.SearchCompleted); !ok {
		t.Errorf("expected SearchCompleted, got %T", rec.last(t))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	tr := newMockTransport()
	svc, _, rec := newTestService(tr)

	_, err := svc.Search(context.Background(), "   ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if tr.total() != 0 {
		t.Errorf("expected no network calls, got %d", tr.total())
	}
	if _, ok := rec.last(t).(event.SearchFailed); !ok {
		t.Errorf("expected SearchFailed, got %T", rec.last(t))
	}
}

func TestSearch_ResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not json", `<html>`, domain.ErrDecode},
		{"missing items", `{"searchResultPage":{"products":{}}}`, domain.ErrStructure},
		{"items not a list", `{"searchResultPage":{"products":{"main":{"items":{}}}}}`, domain.ErrStructure},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, _ := newTestService(newMockTransport().on(opSearch, tc.body))
			_, err := svc.Search(context.Background(), "chair")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSearch_TransportError(t *testing.T) {
	cause := &domain.Error{Kind: domain.KindHTTPStatus, Op: opSearch, Status: 503, Msg: "HTTP 503 Service Unavailable"}
	svc, _, rec := newTestService(newMockTransport().fail(opSearch, cause))

	_, err := svc.Search(context.Background(), "chair")
	if !errors.Is(err, domain.ErrHTTPStatus) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
	ev, ok := rec.last(t).(event.SearchFailed)
	if !ok {
		t.Fatalf("expected SearchFailed, got %T", rec.last(t))
	}
	if !strings.Contains(ev.Message, "503") {
		t.Errorf("message %q should mention status", ev.Message)
	}
}

func TestSearch_RegionChangeAppliesToNextCall(t *testing.T) {
	tr := newMockTransport().on(opSearch, `{"searchResultPage":{"products":{"main":{"items":[]}}}}`)
	svc, _, _ := newTestService(tr)

	if err := svc.SetRegion("de"); err != nil {
		t.Fatalf("SetRegion: %v", err)
	}
	if err := svc.SetLocale("de"); err != nil {
		t.Fatalf("SetLocale: %v", err)
	}
	if _, err := svc.Search(context.Background(), "tisch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.urls[0] != "https://search.test/de/de/search-result-page" {
		t.Errorf("url = %s", tr.urls[0])
	}
}

func TestSetRegion_Invalid(t *testing.T) {
	svc, _, _ := newTestService(newMockTransport())
	for _, bad := range []string{"", "IE", "irl", "1e"} {
		if err := svc.SetRegion(bad); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("SetRegion(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
	if svc.Settings().Region != "ie" {
		t.Errorf("region changed to %q", svc.Settings().Region)
	}
}

// --- Metadata ---

func TestMetadata_FetchesAndCaches(t *testing.T) {
	tr := newMockTransport().on(opMetadata, `{"name":"BILLY","price":49}`)
	svc, store, rec := newTestService(tr)

	md, err := svc.Metadata(context.Background(), "003.467.35")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.ID != "00346735" || md.Cached {
		t.Errorf("unexpected metadata: %+v", md)
	}
	if tr.urls[0] != "https://catalog.test/ie/en/products/735/00346735.json" {
		t.Errorf("url = %s", tr.urls[0])
	}
	if !store.Exists("00346735", cache.ArtifactMetadata) {
		t.Error("expected metadata to be cached")
	}
	ev, ok := rec.last(t).(event.MetadataLoaded)
	if !ok || ev.ID != "00346735" {
		t.Errorf("unexpected event %#v", rec.last(t))
	}

	md, err = svc.Metadata(context.Background(), "00346735")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !md.Cached {
		t.Error("expected second call to be served from cache")
	}
	if tr.count(opMetadata) != 1 {
		t.Errorf("expected 1 network call, got %d", tr.count(opMetadata))
	}
}

func TestMetadata_CacheHitMakesNoCalls(t *testing.T) {
	tr := newMockTransport()
	svc, store, _ := newTestService(tr)
	if _, err := store.Write("00346735", cache.ArtifactMetadata, []byte(`{"name":"BILLY"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	md, err := svc.Metadata(context.Background(), "003-467-35")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, _ := md.Document.(map[string]any)
	if doc["name"] != "BILLY" {
		t.Errorf("unexpected document: %v", md.Document)
	}
	if tr.total() != 0 {
		t.Errorf("expected no network calls, got %d", tr.total())
	}
}

func TestMetadata_CorruptCacheFallsBackToNetwork(t *testing.T) {
	tr := newMockTransport().on(opMetadata, `{"name":"fresh"}`)
	svc, store, _ := newTestService(tr)
	if _, err := store.Write("00346735", cache.ArtifactMetadata, []byte(`{"name":`)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	md, err := svc.Metadata(context.Background(), "00346735")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Cached {
		t.Error("corrupt entry should not be reported as cached")
	}
	if tr.count(opMetadata) != 1 {
		t.Errorf("expected 1 network call, got %d", tr.count(opMetadata))
	}
	data, _ := store.Read("00346735", cache.ArtifactMetadata)
	if string(data) != `{"name":"fresh"}` {
		t.Errorf("cache not repaired: %s", data)
	}
}

func TestMetadata_InvalidIdentifier(t *testing.T) {
	tr := newMockTransport()
	svc, _, rec := newTestService(tr)

	_, err := svc.Metadata(context.Background(), "1234")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if tr.total() != 0 {
		t.Errorf("expected no network calls, got %d", tr.total())
	}
	ev, ok := rec.last(t).(event.MetadataFailed)
	if !ok || ev.ID != "1234" {
		t.Errorf("unexpected event %#v", rec.last(t))
	}
}

func TestMetadata_DecodeFailureIsNotCached(t *testing.T) {
	tr := newMockTransport().on(opMetadata, `not json`)
	svc, store, _ := newTestService(tr)

	_, err := svc.Metadata(context.Background(), "00346735")
	if !errors.Is(err, domain.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if store.Exists("00346735", cache.ArtifactMetadata) {
		t.Error("invalid document must not be cached")
	}
}

// --- Thumbnail ---

func TestThumbnail_DownloadsOnceThenServesFromCache(t *testing.T) {
	img := bytes.Repeat([]byte{0xff}, 500)
	tr := newMockTransport().onBytes(opThumbnail, img)
	svc, _, rec := newTestService(tr)

	first, err := svc.Thumbnail(context.Background(), "00346735", "https://img.test/a.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(first, "00346735/thumbnail.jpg") {
		t.Errorf("unexpected path %s", first)
	}
	ev, ok := rec.last(t).(event.ThumbnailReady)
	if !ok || ev.Path != first {
		t.Errorf("unexpected event %#v", rec.last(t))
	}

	second, err := svc.Thumbnail(context.Background(), "00346735", "https://img.test/a.jpg")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second != first {
		t.Errorf("paths differ: %s vs %s", first, second)
	}
	if tr.total() != 1 {
		t.Errorf("expected 1 network call, got %d", tr.total())
	}
}

func TestThumbnail_TooSmall(t *testing.T) {
	tr := newMockTransport().onBytes(opThumbnail, make([]byte, 99))
	svc, store, _ := newTestService(tr)

	_, err := svc.Thumbnail(context.Background(), "00346735", "https://img.test/a.jpg")
	if !errors.Is(err, domain.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
	if store.Exists("00346735", cache.ArtifactThumbnail) {
		t.Error("invalid image must not be cached")
	}
}

func TestThumbnail_EmptySource(t *testing.T) {
	tr := newMockTransport()
	svc, _, _ := newTestService(tr)

	_, err := svc.Thumbnail(context.Background(), "00346735", " ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if tr.total() != 0 {
		t.Errorf("expected no network calls, got %d", tr.total())
	}
}

// --- Availability ---

func TestCheckAvailability(t *testing.T) {
	tr := newMockTransport().on(opAvailability, `{"exists":true}`)
	svc, store, rec := newTestService(tr)

	ok, err := svc.CheckAvailability(context.Background(), "00346735")
	if err != nil || !ok {
		t.Fatalf("expected available, got %v, %v", ok, err)
	}
	if tr.urls[0] != "https://api.test/ie/en/rotera/data/exists/00346735/" {
		t.Errorf("url = %s", tr.urls[0])
	}
	if !store.Exists("00346735", cache.ArtifactExists) {
		t.Error("expected availability to be cached")
	}
	ev, isAvail := rec.last(t).(event.AvailabilityChecked)
	if !isAvail || !ev.Exists {
		t.Errorf("unexpected event %#v", rec.last(t))
	}

	if _, err := svc.CheckAvailability(context.Background(), "00346735"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if tr.total() != 1 {
		t.Errorf("expected 1 network call, got %d", tr.total())
	}
}

func TestCheckAvailability_FailureEmitsFalse(t *testing.T) {
	tr := newMockTransport().on(opAvailability, `{"exists":"yes"}`)
	svc, _, rec := newTestService(tr)

	_, err := svc.CheckAvailability(context.Background(), "00346735")
	if !errors.Is(err, domain.ErrStructure) {
		t.Fatalf("expected ErrStructure, got %v", err)
	}
	ev, ok := rec.last(t).(event.AvailabilityChecked)
	if !ok || ev.Exists {
		t.Errorf("unexpected event %#v", rec.last(t))
	}
	if rec.len() != 1 {
		t.Errorf("expected exactly one event, got %d", rec.len())
	}
}

// --- Model ---

func TestModel_FullChain(t *testing.T) {
	tr := newMockTransport().
		on(opAvailability, `{"exists":true}`).
		on(opModel, `{"modelUrl":"https://cdn.test/glb_draco/chair_draco.glb"}`).
		onBytes(endpointModelFile, glb(4096))
	svc, store, rec := newTestService(tr)

	path, err := svc.Model(context.Background(), "00346735")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(path, "00346735/model.glb") {
		t.Errorf("unexpected path %s", path)
	}
	if got := tr.urls[len(tr.urls)-1]; got != "https://cdn.test/glb/chair.glb" {
		t.Errorf("download url = %s", got)
	}
	if !store.Exists("00346735", cache.ArtifactModel) {
		t.Error("expected model to be cached")
	}
	if _, ok := rec.last(t).(event.ModelReady); !ok {
		t.Errorf("expected ModelReady, got %T", rec.last(t))
	}
}

func TestModel_CacheHitMakesNoCalls(t *testing.T) {
	tr := newMockTransport()
	svc, store, _ := newTestService(tr)
	want, err := store.Write("00346735", cache.ArtifactModel, glb(2048))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	path, err := svc.Model(context.Background(), "003 467 35")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	if tr.total() != 0 {
		t.Errorf("expected no network calls, got %d", tr.total())
	}
}

func TestModel_NotAvailableStopsChain(t *testing.T) {
	tr := newMockTransport().on(opAvailability, `{"exists":false}`)
	svc, _, rec := newTestService(tr)

	_, err := svc.Model(context.Background(), "00346735")
	if !errors.Is(err, domain.ErrNoModel) {
		t.Fatalf("expected ErrNoModel, got %v", err)
	}
	if tr.count(opModel) != 0 || tr.count(endpointModelFile) != 0 {
		t.Errorf("model endpoints must not be called: %v", tr.calls)
	}
	want := []event.Type{event.TypeAvailabilityChecked, event.TypeModelFailed}
	if got := rec.types(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if ev, ok := rec.events[0].(event.AvailabilityChecked); !ok || ev.Exists || ev.ID != "00346735" {
		t.Errorf("unexpected availability event %#v", rec.events[0])
	}
}

func TestModel_EmitsAvailabilityBeforeResult(t *testing.T) {
	tr := newMockTransport().
		on(opAvailability, `{"exists":true}`).
		on(opModel, `{"modelUrl":"https://cdn.test/glb/chair.glb"}`).
		onBytes(endpointModelFile, glb(2048))
	svc, _, rec := newTestService(tr)

	if _, err := svc.Model(context.Background(), "00346735"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []event.Type{event.TypeAvailabilityChecked, event.TypeModelReady}
	if got := rec.types(); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if ev, ok := rec.events[0].(event.AvailabilityChecked); !ok || !ev.Exists {
		t.Errorf("unexpected availability event %#v", rec.events[0])
	}

	// Cached model: no existence check, so only the terminal event.
	if _, err := svc.Model(context.Background(), "00346735"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got := rec.types()[2:]; !slices.Equal(got, []event.Type{event.TypeModelReady}) {
		t.Errorf("cached call events = %v", got)
	}
}

func TestModel_AvailabilityFailureEmitsFalse(t *testing.T) {
	tr := newMockTransport().fail(opAvailability, domain.Errorf(domain.KindTimeout, opAvailability, "deadline"))
	svc, _, rec := newTestService(tr)

	_, err := svc.Model(context.Background(), "00346735")
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	want := []event.Type{event.TypeAvailabilityChecked, event.TypeModelFailed}
	if got := rec.types(); !slices.Equal(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestModel_InvalidBinary(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"zero bytes without magic", make([]byte, 2000)},
		{"too small", glb(512)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := newMockTransport().
				on(opAvailability, `{"exists":true}`).
				on(opModel, `{"modelUrl":"https://cdn.test/glb/chair.glb"}`).
				onBytes(endpointModelFile, tc.data)
			svc, store, _ := newTestService(tr)

			_, err := svc.Model(context.Background(), "00346735")
			if !errors.Is(err, domain.ErrIntegrity) {
				t.Fatalf("expected ErrIntegrity, got %v", err)
			}
			if store.Exists("00346735", cache.ArtifactModel) {
				t.Error("invalid model must not be cached")
			}
		})
	}
}

func TestModel_MetadataErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"other":1}`},
		{"unsupported scheme", `{"modelUrl":"ftp://cdn.test/a.glb"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := newMockTransport().
				on(opAvailability, `{"exists":true}`).
				on(opModel, tc.body)
			svc, _, _ := newTestService(tr)

			_, err := svc.Model(context.Background(), "00346735")
			if !errors.Is(err, domain.ErrStructure) {
				t.Fatalf("expected ErrStructure, got %v", err)
			}
			if tr.count(endpointModelFile) != 0 {
				t.Error("download must not start")
			}
		})
	}
}

// --- Storage failures ---

func TestMetadata_CacheWriteFailureStillSucceeds(t *testing.T) {
	tr := newMockTransport().on(opMetadata, `{"name":"BILLY"}`)
	svc, store, rec := newFailingService(tr, cache.ArtifactMetadata)

	md, err := svc.Metadata(context.Background(), "00346735")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if md.Cached {
		t.Error("fresh document must not be marked cached")
	}
	if store.Exists("00346735", cache.ArtifactMetadata) {
		t.Error("nothing should have been written")
	}
	if _, ok := rec.last(t).(event.MetadataLoaded); !ok {
		t.Errorf("expected MetadataLoaded, got %T", rec.last(t))
	}
}

func TestThumbnail_CacheWriteFailure(t *testing.T) {
	tr := newMockTransport().onBytes(opThumbnail, bytes.Repeat([]byte{0xff}, 500))
	svc, _, rec := newFailingService(tr, cache.ArtifactThumbnail)

	_, err := svc.Thumbnail(context.Background(), "00346735", "https://img.test/a.jpg")
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if !errors.Is(err, errReadOnly) {
		t.Errorf("expected cause to be kept, got %v", err)
	}
	if _, ok := rec.last(t).(event.ThumbnailFailed); !ok {
		t.Errorf("expected ThumbnailFailed, got %T", rec.last(t))
	}
}

func TestModel_CacheWriteFailureKeepsAvailability(t *testing.T) {
	tr := newMockTransport().
		on(opAvailability, `{"exists":true}`).
		on(opModel, `{"modelUrl":"https://cdn.test/glb/chair.glb"}`).
		onBytes(endpointModelFile, glb(2048))
	svc, store, rec := newFailingService(tr, cache.ArtifactModel)

	for i := range 2 {
		_, err := svc.Model(context.Background(), "00346735")
		if !errors.Is(err, domain.ErrStorage) {
			t.Fatalf("call %d: expected ErrStorage, got %v", i, err)
		}
		if _, ok := rec.last(t).(event.ModelFailed); !ok {
			t.Errorf("call %d: expected ModelFailed, got %T", i, rec.last(t))
		}
	}
	if !store.Exists("00346735", cache.ArtifactExists) {
		t.Error("availability flag should persist")
	}
	if tr.count(opAvailability) != 1 {
		t.Errorf("expected one availability call, got %d", tr.count(opAvailability))
	}
	if tr.count(endpointModelFile) != 2 {
		t.Errorf("expected two download attempts, got %d", tr.count(endpointModelFile))
	}
}

func TestModel_RetryAfterFailedDownloadReusesAvailability(t *testing.T) {
	tr := newMockTransport().
		on(opAvailability, `{"exists":true}`).
		on(opModel, `{"modelUrl":"https://cdn.test/glb/chair.glb"}`).
		fail(endpointModelFile, domain.Errorf(domain.KindConnect, endpointModelFile, "connection refused"))
	svc, store, _ := newTestService(tr)

	if _, err := svc.Model(context.Background(), "00346735"); !errors.Is(err, domain.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if store.Exists("00346735", cache.ArtifactModel) {
		t.Fatal("failed download must not be cached")
	}

	tr.onBytes(endpointModelFile, glb(2048))
	if _, err := svc.Model(context.Background(), "00346735"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if tr.count(opAvailability) != 1 {
		t.Errorf("expected availability to come from cache on retry, got %d calls", tr.count(opAvailability))
	}
}

func TestRewriter_Apply(t *testing.T) {
	r := testSettings().Rewrites
	tests := map[string]string{
		"https://cdn.test/glb_draco/a_draco.glb": "https://cdn.test/glb/a.glb",
		"https://cdn.test/glb/a.glb":             "https://cdn.test/glb/a.glb",
		"https://cdn.test/other/a.gltf":          "https://cdn.test/other/a.gltf",
	}
	for in, want := range tests {
		if got := r.Apply(in); got != want {
			t.Errorf("Apply(%s) = %s, want %s", in, got, want)
		}
	}
}
