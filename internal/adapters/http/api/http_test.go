package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/verbelo/verbelo/internal/adapters/http/api"
	"github.com/verbelo/verbelo/internal/adapters/store"
	service "github.com/verbelo/verbelo/internal/app"
	"github.com/verbelo/verbelo/internal/domain/model"
	"github.com/verbelo/verbelo/internal/domain/rating"
)

// mockDeps implements api.Dependencies for handler tests.
type mockDeps struct {
	seen       map[string]bool
	enqueueOK  bool
	enqueued   []model.Session
	unrecorded []string

	stats    service.Stats
	statsErr error
	board    service.Leaderboard
	boardErr error
	top      []store.Position
	topErr   error
}

func newMockDeps() *mockDeps {
	return &mockDeps{seen: make(map[string]bool), enqueueOK: true}
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) {
	delete(m.seen, id)
	m.unrecorded = append(m.unrecorded, id)
}

func (m *mockDeps) Enqueue(_ context.Context, s model.Session) bool {
	if !m.enqueueOK {
		return false
	}
	m.enqueued = append(m.enqueued, s)
	return true
}

func (m *mockDeps) GetStats(_ context.Context, playerID string) (service.Stats, error) {
	if m.statsErr != nil {
		return service.Stats{}, m.statsErr
	}
	out := m.stats
	out.PlayerID = playerID
	return out, nil
}

func (m *mockDeps) GetLeaderboard(_ context.Context, _ string, _, _ int) (service.Leaderboard, error) {
	return m.board, m.boardErr
}

func (m *mockDeps) Top(_ context.Context, _ int) ([]store.Position, error) {
	return m.top, m.topErr
}

func (m *mockDeps) RuntimeStats(_ context.Context) map[string]any {
	return map[string]any{"started": true}
}

func newTestServer(deps *mockDeps) *httptest.Server {
	mux := http.NewServeMux()
	srv := api.NewServer(deps, api.Limits{MaxLeaderboardLimit: 10, MaxNeighborRadius: 5})
	srv.Register(context.Background(), mux)
	return httptest.NewServer(mux)
}

func validSessionBody(sessionID string) string {
	return fmt.Sprintf(`{
		"session_id": %q,
		"player_id": "p1",
		"accuracy": 1.0,
		"attempts": 4,
		"time_taken": 600,
		"difficulty": 3,
		"ts": "2026-08-01T12:00:00Z"
	}`, sessionID)
}

func TestPostSession(t *testing.T) {
	Convey("Given the sessions endpoint", t, func() {
		deps := newMockDeps()
		ts := newTestServer(deps)
		defer ts.Close()

		post := func(body string) (*http.Response, map[string]any) {
			resp, err := http.Post(ts.URL+"/sessions", "application/json", strings.NewReader(body))
			So(err, ShouldBeNil)
			var decoded map[string]any
			So(json.NewDecoder(resp.Body).Decode(&decoded), ShouldBeNil)
			resp.Body.Close()
			return resp, decoded
		}

		Convey("When a valid session is posted", func() {
			resp, body := post(validSessionBody("s1"))

			Convey("Then it is accepted and enqueued", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
				So(body["status"], ShouldEqual, "accepted")
				So(body["duplicate"], ShouldEqual, false)
				So(len(deps.enqueued), ShouldEqual, 1)
				So(deps.enqueued[0].PlayerID, ShouldEqual, "p1")
				So(deps.enqueued[0].TS.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When the same session id is posted twice", func() {
			post(validSessionBody("s1"))
			resp, body := post(validSessionBody("s1"))

			Convey("Then the duplicate is acknowledged without enqueueing", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body["duplicate"], ShouldEqual, true)
				So(len(deps.enqueued), ShouldEqual, 1)
			})
		})

		Convey("When the body is not JSON", func() {
			resp, _ := post("{nope")
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the payload fails validation", func() {
			bad := strings.Replace(validSessionBody("s2"), `"attempts": 4`, `"attempts": 0`, 1)
			resp, _ := post(bad)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(len(deps.enqueued), ShouldEqual, 0)
		})

		Convey("When the timestamp is malformed", func() {
			bad := strings.Replace(validSessionBody("s3"), "2026-08-01T12:00:00Z", "yesterday", 1)
			resp, _ := post(bad)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the queue is full", func() {
			deps.enqueueOK = false
			resp, _ := post(validSessionBody("s4"))

			Convey("Then backpressure surfaces and the id is released for retry", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusTooManyRequests)
				So(deps.unrecorded, ShouldContain, "s4")
				So(deps.seen["s4"], ShouldBeFalse)
			})
		})

		Convey("When the method is wrong", func() {
			resp, err := http.Get(ts.URL + "/sessions")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestGetRank(t *testing.T) {
	Convey("Given the rank endpoint", t, func() {
		deps := newMockDeps()
		deps.stats = service.Stats{
			RankDisplay: "Gold II",
			Points:      1350,
			GlobalRank:  4,
			GamesPlayed: 12,
		}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When a known player is fetched", func() {
			resp, err := http.Get(ts.URL + "/rank/p1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the standing is returned without internals", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["player_id"], ShouldEqual, "p1")
				So(body["rank"], ShouldEqual, "Gold II")
				So(body["points"], ShouldEqual, 1350.0)
				So(body["global_rank"], ShouldEqual, 4.0)
				So(body["games_played"], ShouldEqual, 12.0)
				_, leaked := body["shadow_strength"]
				So(leaked, ShouldBeFalse)
			})
		})

		Convey("When the player is unknown", func() {
			deps.statsErr = fmt.Errorf("ensure standing: %w", store.ErrNotFound)
			resp, err := http.Get(ts.URL + "/rank/ghost")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the path is malformed", func() {
			for _, path := range []string{"/rank/", "/rank/a/b"} {
				resp, err := http.Get(ts.URL + path)
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			}
		})
	})
}

func boardRow(pos int, id string, points int) store.Position {
	return store.Position{
		Position: pos,
		PlayerID: id,
		Grade:    rating.DefaultLadder().GradeFor(points),
		Points:   points,
	}
}

func TestGetLeaderboard(t *testing.T) {
	Convey("Given the leaderboard endpoint", t, func() {
		deps := newMockDeps()
		deps.top = []store.Position{
			boardRow(1, "a", 2100),
			boardRow(2, "b", 900),
		}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When the top list is fetched", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?limit=2")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then entries carry position, rank and points", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var body []map[string]any
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(len(body), ShouldEqual, 2)
				So(body[0]["player_id"], ShouldEqual, "a")
				So(body[0]["rank"], ShouldEqual, "Platinum III")
				So(body[1]["position"], ShouldEqual, 2.0)
			})
		})

		Convey("When the limit is missing or invalid", func() {
			for _, q := range []string{"", "?limit=0", "?limit=abc"} {
				resp, err := http.Get(ts.URL + "/leaderboard" + q)
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the limit exceeds the cap", func() {
			resp, err := http.Get(ts.URL + "/leaderboard?limit=11")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestGetNearby(t *testing.T) {
	Convey("Given the nearby endpoint", t, func() {
		deps := newMockDeps()
		deps.board = service.Leaderboard{
			Neighbors: []store.Position{
				boardRow(4, "above", 800),
				boardRow(5, "me", 700),
				boardRow(6, "below", 600),
			},
		}
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("When a window is fetched", func() {
			resp, err := http.Get(ts.URL + "/leaderboard/nearby?player_id=me&radius=1")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the window is framed with its parameters", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
				So(body["player_id"], ShouldEqual, "me")
				So(body["radius"], ShouldEqual, 1.0)
				entries := body["entries"].([]any)
				So(len(entries), ShouldEqual, 3)
			})
		})

		Convey("When parameters are missing or invalid", func() {
			for _, q := range []string{
				"?radius=1",
				"?player_id=me",
				"?player_id=me&radius=-1",
				"?player_id=me&radius=abc",
				"?player_id=me&radius=6",
			} {
				resp, err := http.Get(ts.URL + "/leaderboard/nearby" + q)
				So(err, ShouldBeNil)
				resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			}
		})

		Convey("When the player is unknown", func() {
			deps.boardErr = fmt.Errorf("neighbors: %w", store.ErrNotFound)
			resp, err := http.Get(ts.URL + "/leaderboard/nearby?player_id=ghost&radius=1")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStatsAndHealth(t *testing.T) {
	Convey("Given the operational endpoints", t, func() {
		deps := newMockDeps()
		ts := newTestServer(deps)
		defer ts.Close()

		Convey("Then /stats returns the runtime snapshot", func() {
			resp, err := http.Get(ts.URL + "/stats")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			var body map[string]any
			So(json.NewDecoder(resp.Body).Decode(&body), ShouldBeNil)
			So(body["started"], ShouldEqual, true)
		})

		Convey("Then /healthz serves the metrics exposition", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})
	})
}
