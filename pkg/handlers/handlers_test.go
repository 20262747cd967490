package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mindcase/mindcase-core/pkg/auth"
	"github.com/mindcase/mindcase-core/pkg/models"
	"github.com/mindcase/mindcase-core/pkg/outbox"
	"github.com/mindcase/mindcase-core/pkg/regions"
	"github.com/mindcase/mindcase-core/pkg/repositories"
	"github.com/mindcase/mindcase-core/pkg/services"
	"github.com/mindcase/mindcase-core/pkg/syncengine"
	"github.com/mindcase/mindcase-core/pkg/trust"
)

const testTenant = "tenant-1"

type fixture struct {
	server *httptest.Server
	store  *repositories.MemoryStore
	signal *syncengine.Signal
	sync   *syncengine.Engine
	queue  *outbox.Queue
}

func newFixture(t *testing.T, actors auth.ActorProvider) *fixture {
	t.Helper()
	logger := zap.NewNop()

	store := repositories.NewMemoryStore()
	provider := regions.NewStaticProvider(map[string]*regions.StoreHandle{
		"eu-west": {Region: "eu-west", Records: store, Documents: store},
	})
	resolver := regions.NewHandleResolver(provider,
		regions.NewStaticDirectory(map[string]string{testTenant: "eu-west"}, ""))

	blobs, err := services.NewLocalBlobStore(t.TempDir())
	require.NoError(t, err)

	recordService := services.NewRecordService(resolver, trust.NewEngine(nil), nil, logger)
	documentService := services.NewDocumentService(resolver, blobs, nil, logger)

	signal := syncengine.NewSignal(true)
	queue, err := outbox.New(context.Background(), outbox.NewMemoryStorage(), nil, logger,
		outbox.WithOnlineProbe(signal.Online))
	require.NoError(t, err)
	services.RegisterReplayHandlers(queue, recordService, documentService)

	engine := syncengine.New(queue, signal, nil, logger)
	engine.Start(context.Background())
	t.Cleanup(engine.Stop)

	mux := http.NewServeMux()
	NewRecordHandler(recordService, engine, actors, logger).RegisterRoutes(mux)
	NewDocumentHandler(documentService, engine, actors, logger).RegisterRoutes(mux)
	NewSyncHandler(engine, queue, logger).RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &fixture{server: server, store: store, signal: signal, sync: engine, queue: queue}
}

func (f *fixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(f.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createBody() createRecordRequest {
	return createRecordRequest{
		Draft: models.SubjectDraft{
			RecordType: "student",
			Identity: models.Section{
				"firstName":   models.NewField("Ada"),
				"dateOfBirth": models.NewField("2015-12-10"),
			},
		},
	}
}

func TestRecordHandler_CreateAndGet(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "user-1"})

	resp := f.post(t, "/api/tenants/"+testTenant+"/records", createBody())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decodeBody[createRecordResponse](t, resp)
	assert.Equal(t, syncengine.StatusSynced, created.SyncStatus)

	getResp, err := http.Get(f.server.URL + "/api/tenants/" + testTenant + "/records/" + created.ID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	record := decodeBody[models.SubjectRecord](t, getResp)
	assert.Equal(t, created.ID, record.ID)
	assert.Equal(t, "user-1", record.Meta.CreatedBy)
}

func TestRecordHandler_CreateValidationFailure(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "user-1"})

	resp := f.post(t, "/api/tenants/"+testTenant+"/records", createRecordRequest{})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecordHandler_Unauthorized(t *testing.T) {
	// A JWT provider with no token in the request resolves no actor.
	f := newFixture(t, auth.NewJWTProvider([]byte("secret")))

	resp := f.post(t, "/api/tenants/"+testTenant+"/records", createBody())
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRecordHandler_GetUnknownRecordIs404(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "user-1"})

	resp, err := http.Get(f.server.URL + "/api/tenants/" + testTenant + "/records/" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecordHandler_VerifyField(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "psych-2"})

	resp := f.post(t, "/api/tenants/"+testTenant+"/records", createBody())
	created := decodeBody[createRecordResponse](t, resp)

	verifyResp := f.post(t,
		fmt.Sprintf("/api/tenants/%s/records/%s/verify", testTenant, created.ID),
		verifyFieldRequest{FieldPath: "identity.dateOfBirth", EvidenceRef: "doc-9"})
	defer verifyResp.Body.Close()
	require.Equal(t, http.StatusAccepted, verifyResp.StatusCode)

	record, err := f.store.GetRecord(context.Background(), testTenant, created.ID)
	require.NoError(t, err)
	field := record.Identity["dateOfBirth"]
	assert.True(t, field.Metadata.Verified)
	assert.Equal(t, "psych-2", field.Metadata.VerifiedBy)
	assert.Equal(t, "doc-9", field.Metadata.SourceID)
}

func TestRecordHandler_OfflineCreateQueuesAndReplays(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "user-1"})
	ctx := context.Background()

	f.signal.Set(false)

	resp := f.post(t, "/api/tenants/"+testTenant+"/records", createBody())
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decodeBody[createRecordResponse](t, resp)
	assert.Equal(t, syncengine.StatusOffline, created.SyncStatus)

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, depth)
	_, err = f.store.GetRecord(ctx, testTenant, created.ID)
	require.Error(t, err, "offline create is queued, not committed")

	f.signal.Set(true)
	flushResp := f.post(t, "/api/sync/flush", nil)
	defer flushResp.Body.Close()
	require.Equal(t, http.StatusOK, flushResp.StatusCode)

	record, err := f.store.GetRecord(ctx, testTenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, record.ID, "replay commits the id the client already holds")
}

func TestDocumentHandler_UploadAndDuplicate(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "user-1"})

	body := uploadDocumentRequest{Filename: "report.pdf", Content: []byte("assessment")}

	first := f.post(t, "/api/tenants/"+testTenant+"/documents", body)
	defer first.Body.Close()
	require.Equal(t, http.StatusAccepted, first.StatusCode)

	second := f.post(t, "/api/tenants/"+testTenant+"/documents", uploadDocumentRequest{
		Filename: "copy.pdf", Content: []byte("assessment"),
	})
	require.Equal(t, http.StatusConflict, second.StatusCode)
	conflict := decodeBody[map[string]string](t, second)
	assert.Equal(t, "duplicate_content", conflict["error"])
	assert.NotEmpty(t, conflict["existingId"])
}

func TestDocumentHandler_CheckDocument(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "user-1"})

	content := []byte("assessment")
	clean := f.post(t, "/api/tenants/"+testTenant+"/documents/check", checkDocumentRequest{Content: content})
	require.Equal(t, http.StatusOK, clean.StatusCode)
	result := decodeBody[map[string]bool](t, clean)
	assert.False(t, result["duplicate"])

	upload := f.post(t, "/api/tenants/"+testTenant+"/documents", uploadDocumentRequest{
		Filename: "report.pdf", Content: content,
	})
	upload.Body.Close()

	dup := f.post(t, "/api/tenants/"+testTenant+"/documents/check", checkDocumentRequest{Content: content})
	defer dup.Body.Close()
	assert.Equal(t, http.StatusConflict, dup.StatusCode)
}

func TestSyncHandler_Status(t *testing.T) {
	f := newFixture(t, auth.StaticProvider{ID: "user-1"})

	resp, err := http.Get(f.server.URL + "/api/sync/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := decodeBody[map[string]any](t, resp)
	assert.Equal(t, string(syncengine.StatusSynced), status["status"])
	assert.EqualValues(t, 0, status["pendingCount"])
}
