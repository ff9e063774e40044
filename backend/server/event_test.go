package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vukamap/backend/db"
)

type fakeEvents struct {
	events  map[int64]*db.Event
	members map[int64][]string
	created *db.Event
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		events: map[int64]*db.Event{
			1: {ID: 1, Title: "Kibera sweep", Date: time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), Time: "08:00",
				City: "Nairobi", Coordinate: kibera, Attendees: 1, MaxAttendees: 2},
		},
		members: map[int64][]string{1: {"amina"}},
	}
}

func (f *fakeEvents) CreateEvent(_ context.Context, e *db.Event) (int64, error) {
	f.created = e
	return 7, nil
}

func (f *fakeEvents) ListEvents(context.Context) ([]*db.Event, error) {
	return []*db.Event{f.events[1]}, nil
}

func (f *fakeEvents) GetEvent(_ context.Context, id int64) (*db.Event, error) {
	if e, ok := f.events[id]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("event %d: %w", id, db.ErrEventNotFound)
}

func (f *fakeEvents) JoinEvent(ctx context.Context, eventID int64, userID string) (int, error) {
	e, err := f.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if e.Attendees >= e.MaxAttendees {
		return 0, fmt.Errorf("event %d: %w", eventID, db.ErrEventFull)
	}
	if userID == "ghost" {
		return 0, fmt.Errorf("user %q: %w", userID, db.ErrUserNotFound)
	}
	for _, m := range f.members[eventID] {
		if m == userID {
			return 0, fmt.Errorf("event %d: %w", eventID, db.ErrAlreadyRegistered)
		}
	}
	f.members[eventID] = append(f.members[eventID], userID)
	e.Attendees++
	return e.Attendees, nil
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateEvent(t *testing.T) {
	events := newFakeEvents()
	s := New(&fakeReports{}, &fakeDirectory{}, events)

	w := serve(s, jsonRequest(http.MethodPost, "/events", `{"title":"Mathare banks","date":"2024-05-04","time":"09:30",
		"location":"Mathare North","city":"Nairobi","lat":-1.26,"lng":36.86,"max_attendees":25}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.NotNil(t, events.created)
	assert.Equal(t, time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), events.created.Date)
	assert.Equal(t, 25, events.created.MaxAttendees)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 7, resp["id"])
	assert.Equal(t, "2024-05-04", resp["date"])
}

func TestCreateEventRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"missing title", `{"date":"2024-05-04","time":"09:30","location":"x","city":"Nairobi","max_attendees":5}`},
		{"bad date", `{"title":"t","date":"04/05/2024","time":"09:30","location":"x","city":"Nairobi","max_attendees":5}`},
		{"no capacity", `{"title":"t","date":"2024-05-04","time":"09:30","location":"x","city":"Nairobi","max_attendees":0}`},
		{"bad coordinate", `{"title":"t","date":"2024-05-04","time":"09:30","location":"x","city":"Nairobi","lat":95,"max_attendees":5}`},
		{"not json", `title=t`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			events := newFakeEvents()
			s := New(&fakeReports{}, &fakeDirectory{}, events)
			w := serve(s, jsonRequest(http.MethodPost, "/events", tc.body))
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Nil(t, events.created)
		})
	}
}

func TestListAndReadEvents(t *testing.T) {
	s := New(&fakeReports{}, &fakeDirectory{}, newFakeEvents())

	w := serve(s, httptest.NewRequest(http.MethodGet, "/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Kibera sweep", list[0]["title"])
	assert.Equal(t, "2024-04-20", list[0]["date"])

	w = serve(s, httptest.NewRequest(http.MethodGet, "/events/1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	w = serve(s, httptest.NewRequest(http.MethodGet, "/events/9", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = serve(s, httptest.NewRequest(http.MethodGet, "/events/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJoinEvent(t *testing.T) {
	s := New(&fakeReports{}, &fakeDirectory{}, newFakeEvents())

	w := serve(s, jsonRequest(http.MethodPost, "/events/1/join", `{"user_id":"amina"}`))
	assert.Equal(t, http.StatusConflict, w.Code, "already registered")

	w = serve(s, jsonRequest(http.MethodPost, "/events/1/join", `{"user_id":"ghost"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(s, jsonRequest(http.MethodPost, "/events/1/join", `{"user_id":"baraka"}`))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"message":"Successfully joined!","attendees":2}`, w.Body.String())

	w = serve(s, jsonRequest(http.MethodPost, "/events/1/join", `{"user_id":"wanjiru"}`))
	assert.Equal(t, http.StatusConflict, w.Code, "event is full")

	w = serve(s, jsonRequest(http.MethodPost, "/events/9/join", `{"user_id":"wanjiru"}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(s, jsonRequest(http.MethodPost, "/events/1/join", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
