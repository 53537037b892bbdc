package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/herdsearch/herd-search/internal/domain/user"
	"github.com/herdsearch/herd-search/internal/infrastructure/repository/memory"
	"github.com/herdsearch/herd-search/internal/platform/id"
	"github.com/herdsearch/herd-search/internal/usecase"
	"github.com/stretchr/testify/require"
)

const testDevPasscode = "festival-ops"

// newTestRouter wires the full middleware chain over the in-memory store,
// the same shape the app assembles in production minus Firebase and Redis.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	st := memory.NewStore()
	idGen := id.NewUUIDGenerator()

	membership := usecase.NewMembershipService(st.Users(), st.Squads(), idGen, nil)
	profiles := usecase.NewProfileService(st.Users(), membership, nil)
	locations := usecase.NewLocationService(st.Users(), st.Areas(), nil, nil)
	areas := usecase.NewAreaService(st.Areas(), idGen, nil)
	watches := usecase.NewWatchService(st.Users(), st.Squads(), st.Areas(), nil)

	sim, err := usecase.NewSimulator(locations, st.Users(), 10*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(sim.Shutdown)

	verifier := &stubVerifier{principals: map[string]user.Principal{
		"alice-token": {ID: "alice", DisplayName: "Alice", Email: "alice@example.com"},
		"bob-token":   {ID: "bob", DisplayName: "Bob", Email: "bob@example.com"},
	}}

	handler := NewHandler(profiles, membership, locations, areas, watches, sim, nil)

	return NewRouter(handler, verifier, nil, []string{"*"}, testDevPasscode)
}

func doJSON(t *testing.T, router http.Handler, method, path, token, body string, extraHeaders map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func bootstrap(t *testing.T, router http.Handler, token string) map[string]any {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/session/bootstrap", token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeData(t, rec)
}

func TestHealthzIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBootstrapCreatesProfile(t *testing.T) {
	router := newTestRouter(t)

	profile := bootstrap(t, router, "alice-token")
	require.Equal(t, "alice", profile["id"])
	require.Equal(t, "alice@example.com", profile["email"])
	require.Equal(t, user.AreaUnknown, profile["currentArea"])
	require.Equal(t, true, profile["useGps"])
}

func TestMeRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v1/me", "", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateSettingsTogglesGPS(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")

	rec := doJSON(t, router, http.MethodPut, "/v1/me/settings", "alice-token", `{"useGps":false}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, false, decodeData(t, rec)["useGps"])
}

func TestReportPositionResolvesArea(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")

	rec := doJSON(t, router, http.MethodPost, "/v1/areas", "alice-token",
		`{"name":"Main Stage","polygon":[{"x":0,"y":0},{"x":0.5,"y":0},{"x":0.5,"y":0.5},{"x":0,"y":0.5}]}`,
		map[string]string{"X-Dev-Passcode": testDevPasscode})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/v1/me/position", "alice-token", `{"x":0.25,"y":0.25}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decodeData(t, rec)
	require.Equal(t, "Main Stage", profile["currentArea"])
	require.Equal(t, "Main Stage", profile["lastKnownArea"])

	// Outside every polygon: current drops to unknown, last known sticks.
	rec = doJSON(t, router, http.MethodPost, "/v1/me/position", "alice-token", `{"x":0.9,"y":0.9}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile = decodeData(t, rec)
	require.Equal(t, user.AreaUnknown, profile["currentArea"])
	require.Equal(t, "Main Stage", profile["lastKnownArea"])
}

func TestCheckInUnknownArea(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")

	rec := doJSON(t, router, http.MethodPost, "/v1/me/checkin", "alice-token", `{"areaId":"nope"}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAreaAuthoringRequiresPasscode(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")

	body := `{"name":"Backstage","polygon":[{"x":0,"y":0},{"x":1,"y":0},{"x":1,"y":1}]}`

	rec := doJSON(t, router, http.MethodPost, "/v1/areas", "alice-token", body, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/areas", "alice-token", body,
		map[string]string{"X-Dev-Passcode": "wrong"})
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInviteAcceptFlow(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")
	bootstrap(t, router, "bob-token")

	rec := doJSON(t, router, http.MethodPost, "/v1/squad/invites", "alice-token", `{"email":"bob@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invite := decodeData(t, rec)
	require.Equal(t, "alice", invite["senderId"])
	require.Equal(t, "bob", invite["recipientId"])

	var listEnvelope struct {
		Data []map[string]any `json:"data"`
	}
	rec = doJSON(t, router, http.MethodGet, "/v1/squad/invites", "bob-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &listEnvelope))
	require.Len(t, listEnvelope.Data, 1)

	inviteID := listEnvelope.Data[0]["id"].(string)
	rec = doJSON(t, router, http.MethodPost, "/v1/squad/invites/"+inviteID+"/accept", "bob-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/v1/squad", "bob-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeData(t, rec)
	squadObj := view["squad"].(map[string]any)
	require.Equal(t, "alice", squadObj["ownerId"])
	require.Len(t, view["members"].([]any), 2)
}

func TestDuplicateInviteConflicts(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")
	bootstrap(t, router, "bob-token")

	rec := doJSON(t, router, http.MethodPost, "/v1/squad/invites", "alice-token", `{"email":"bob@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/squad/invites", "alice-token", `{"email":"bob@example.com"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestSelfInviteRejected(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")

	rec := doJSON(t, router, http.MethodPost, "/v1/squad/invites", "alice-token", `{"email":"alice@example.com"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaveDissolvesSingletonSquad(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")
	bootstrap(t, router, "bob-token")

	rec := doJSON(t, router, http.MethodPost, "/v1/squad/invites", "alice-token", `{"email":"bob@example.com"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	inviteID := decodeData(t, rec)["id"].(string)

	rec = doJSON(t, router, http.MethodPost, "/v1/squad/invites/"+inviteID+"/decline", "bob-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Alice is sole owner of her singleton squad; leaving dissolves it.
	rec = doJSON(t, router, http.MethodPost, "/v1/squad/leave", "alice-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/v1/squad", "alice-token", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectsUnknownJSONFields(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")

	rec := doJSON(t, router, http.MethodPut, "/v1/me/settings", "alice-token", `{"useGps":true,"admin":true}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimulatorStartStop(t *testing.T) {
	router := newTestRouter(t)
	bootstrap(t, router, "alice-token")

	rec := doJSON(t, router, http.MethodPost, "/v1/me/simulator/start", "alice-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, decodeData(t, rec)["running"])

	rec = doJSON(t, router, http.MethodPost, "/v1/me/simulator/stop", "alice-token", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, decodeData(t, rec)["running"])
}
