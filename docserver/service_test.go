package docserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestServiceAddBroadcastsEvent(t *testing.T) {
	mock := newMock(t)
	hub := NewHub(nil, nil)
	client := hub.Register(feedKey("user-1", "trips"))
	defer hub.Unregister(client)

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(pgxmock.AnyArg(), "user-1", "trips", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock, hub, nil)
	id, err := svc.Add(context.Background(), "user-1", "trips", map[string]any{"title": "Paris"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var ev WireEvent
	require.NoError(t, json.Unmarshal(<-client.Send, &ev))
	require.Equal(t, EventAdded, ev.Type)
	require.Equal(t, "trips", ev.Path)
	require.Equal(t, id, ev.Doc.ID)
	require.Equal(t, "Paris", ev.Doc.Data["title"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceSetMergesExistingDocument(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT payload FROM documents`).
		WithArgs("user-1", "trips/t1/budget", "tripBudget").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).
			AddRow([]byte(`{"currency":"EUR","totalBudget":100}`)))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("tripBudget", "user-1", "trips/t1/budget", []byte(`{"currency":"EUR","totalBudget":1500}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock, nil, nil)
	err := svc.Set(context.Background(), "user-1", "trips/t1/budget", "tripBudget",
		map[string]any{"totalBudget": 1500})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceSetCreatesMissingDocument(t *testing.T) {
	mock := newMock(t)
	hub := NewHub(nil, nil)
	client := hub.Register(feedKey("user-1", "trips"))
	defer hub.Unregister(client)

	mock.ExpectQuery(`SELECT payload FROM documents`).
		WithArgs("user-1", "trips", "abc123").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs("abc123", "user-1", "trips", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	svc := NewService(mock, hub, nil)
	require.NoError(t, svc.Set(context.Background(), "user-1", "trips", "abc123",
		map[string]any{"title": "Paris"}))

	var ev WireEvent
	require.NoError(t, json.Unmarshal(<-client.Send, &ev))
	require.Equal(t, EventAdded, ev.Type, "set on a missing doc announces a creation")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceGetNotFound(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT payload FROM documents`).
		WithArgs("user-1", "trips", "nope").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock, nil, nil)
	_, err := svc.Get(context.Background(), "user-1", "trips", "nope")
	require.ErrorIs(t, err, ErrDocNotFound)
}

func TestServiceDeleteBroadcastsOnlyWhenRowExisted(t *testing.T) {
	mock := newMock(t)
	hub := NewHub(nil, nil)
	client := hub.Register(feedKey("user-1", "trips"))
	defer hub.Unregister(client)

	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("user-1", "trips", "abc123").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs("user-1", "trips", "gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	svc := NewService(mock, hub, nil)
	require.NoError(t, svc.Delete(context.Background(), "user-1", "trips", "abc123"))
	require.NoError(t, svc.Delete(context.Background(), "user-1", "trips", "gone"))

	var ev WireEvent
	require.NoError(t, json.Unmarshal(<-client.Send, &ev))
	require.Equal(t, EventRemoved, ev.Type)
	require.Equal(t, "abc123", ev.Doc.ID)
	select {
	case extra := <-client.Send:
		t.Fatalf("no event expected for a no-op delete, got %s", extra)
	default:
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceList(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT id, payload FROM documents`).
		WithArgs("user-1", "trips").
		WillReturnRows(pgxmock.NewRows([]string{"id", "payload"}).
			AddRow("abc123", []byte(`{"title":"Paris"}`)).
			AddRow("xyz789", []byte(`{"title":"Rome"}`)))

	svc := NewService(mock, nil, nil)
	docs, err := svc.List(context.Background(), "user-1", "trips")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "abc123", docs[0].ID)
	require.Equal(t, "Paris", docs[0].Data["title"])
	require.Equal(t, "Rome", docs[1].Data["title"])
}
