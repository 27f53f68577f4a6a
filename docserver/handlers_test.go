package docserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*Server, pgxmock.PgxPoolIface, string) {
	t.Helper()
	mock := newMock(t)
	hub := NewHub(nil, nil)
	auth := NewAuthService("test-secret", mock)
	docs := NewService(mock, hub, nil)
	assets := NewAssetService(mock, "http://sync.test")
	srv := NewServer(auth, docs, assets, hub)

	tokens, err := auth.issueToken(User{ID: "user-1"}, "device-test")
	require.NoError(t, err)
	return srv, mock, tokens.AccessToken
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	resp, err := srv.App.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDocRoutesRequireAuth(t *testing.T) {
	srv, _, _ := testServer(t)
	resp, err := srv.App.Test(httptest.NewRequest(http.MethodGet, "/v1/docs?path=trips", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDocCreateAndList(t *testing.T) {
	srv, mock, token := testServer(t)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(pgxmock.AnyArg(), "user-1", "trips", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	body, _ := json.Marshal(map[string]any{"title": "Paris"})
	req := httptest.NewRequest(http.MethodPost, "/v1/docs?path=trips", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID string `json:"id"`
	}
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &created))
	require.NotEmpty(t, created.ID)

	mock.ExpectQuery(`SELECT id, payload FROM documents`).
		WithArgs("user-1", "trips").
		WillReturnRows(pgxmock.NewRows([]string{"id", "payload"}).
			AddRow(created.ID, []byte(`{"title":"Paris"}`)))

	req = httptest.NewRequest(http.MethodGet, "/v1/docs?path=trips", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = srv.App.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []WireDoc
	raw, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list, 1)
	require.Equal(t, "Paris", list[0].Data["title"])
}

func TestDocGetMissingReturns404(t *testing.T) {
	srv, mock, token := testServer(t)

	mock.ExpectQuery(`SELECT payload FROM documents`).
		WithArgs("user-1", "trips", "nope").
		WillReturnError(pgx.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/v1/docs?path=trips&id=nope", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAssetUploadAndDelete(t *testing.T) {
	srv, mock, token := testServer(t)

	mock.ExpectExec(`INSERT INTO assets`).
		WithArgs(pgxmock.AnyArg(), "user-1", "louvre.jpg", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	req := httptest.NewRequest(http.MethodPost, "/v1/assets?name=louvre.jpg", bytes.NewReader([]byte("jpegbytes")))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		URL string `json:"url"`
	}
	raw, _ := io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(raw, &created))
	require.Contains(t, created.URL, "http://sync.test/v1/assets/")

	mock.ExpectExec(`DELETE FROM assets`).
		WithArgs(pgxmock.AnyArg(), "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	req = httptest.NewRequest(http.MethodDelete, "/v1/assets?url="+created.URL, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = srv.App.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedRequiresUpgrade(t *testing.T) {
	srv, _, token := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/feed?path=trips&token="+token, nil)
	resp, err := srv.App.Test(req)
	require.NoError(t, err)
	require.NotEqual(t, http.StatusOK, resp.StatusCode)
}
