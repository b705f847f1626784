package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/swipescore/internal/adapters/http/api"
	service "github.com/okian/swipescore/internal/app"
	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fields  []struct {
		Field string `json:"field"`
		Tag   string `json:"tag"`
	} `json:"fields"`
}

type resultsBody struct {
	Result   model.SessionResult `json:"result"`
	TopItems []model.ScoredItem  `json:"top_items"`
	Items    []model.CatalogItem `json:"items"`
}

func newHandler() http.Handler {
	svc := service.New(
		service.WithWorkerCount(1),
		service.WithQueueSize(100),
		service.WithClock(func() time.Time { return fixedNow }),
	)
	return api.NewServer(svc).Routes(context.Background())
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) errorBody {
	var body errorBody
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func startSession(h http.Handler) string {
	w := do(h, http.MethodPost, "/sessions", `{"user_id":"u-1","total_cards":5}`)
	So(w.Code, ShouldEqual, http.StatusCreated)
	var sess model.Session
	So(json.Unmarshal(w.Body.Bytes(), &sess), ShouldBeNil)
	return sess.ID
}

func swipe(h http.Handler, sessionID, itemID, direction string, durationMS int64) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"session_id":%q,"item_id":%q,"direction":%q,"swipe_duration_ms":%d}`,
		sessionID, itemID, direction, durationMS)
	return do(h, http.MethodPost, "/swipes", body)
}

func TestServer_Operational(t *testing.T) {
	Convey("Given the API router", t, func() {
		h := newHandler()

		Convey("Then /healthz reports ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("Then /stats returns service statistics", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"topN":3`)
		})

		Convey("Then /metrics exposes the custom registry", func() {
			do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "swipescore_")
		})

		Convey("Then /openapi.yaml is served", func() {
			w := do(h, http.MethodGet, "/openapi.yaml", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("Then a wrong method is rejected", func() {
			w := do(h, http.MethodDelete, "/sessions", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_SessionFlow(t *testing.T) {
	Convey("Given a catalog over two categories", t, func() {
		h := newHandler()
		w := do(h, http.MethodPut, "/items", `[
			{"id":"x1","title":"Drone","category_id":"X","discovered_at":"2025-01-01T00:00:00Z"},
			{"id":"x2","category_id":"X","discovered_at":"2025-01-01T00:00:00Z"},
			{"id":"x3","category_id":"X","discovered_at":"2025-01-01T00:00:00Z"},
			{"id":"y1","category_id":"Y","discovered_at":"2025-01-01T00:00:00Z"},
			{"id":"y2","category_id":"Y","discovered_at":"2025-01-01T00:00:00Z"}
		]`)
		So(w.Code, ShouldEqual, http.StatusNoContent)

		sessionID := startSession(h)

		Convey("When the deck is requested", func() {
			w := do(h, http.MethodGet, "/items", "")
			small := do(h, http.MethodGet, "/items?limit=2", "")

			Convey("Then catalog items are dealt in id order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var deck []model.CatalogItem
				So(json.Unmarshal(w.Body.Bytes(), &deck), ShouldBeNil)
				So(len(deck), ShouldEqual, 5)
				So(deck[0].ID, ShouldEqual, "x1")
				So(deck[0].Title, ShouldEqual, "Drone")

				So(small.Code, ShouldEqual, http.StatusOK)
				So(json.Unmarshal(small.Body.Bytes(), &deck), ShouldBeNil)
				So(len(deck), ShouldEqual, 2)
			})
		})

		Convey("When every item is swiped and results are requested", func() {
			So(swipe(h, sessionID, "x1", "super", 9000).Code, ShouldEqual, http.StatusCreated)
			for _, id := range []string{"x2", "x3", "y1", "y2"} {
				So(swipe(h, sessionID, id, "accept", 1000).Code, ShouldEqual, http.StatusCreated)
			}

			w := do(h, http.MethodPost, "/sessions/"+sessionID+"/results", "")

			Convey("Then the ranked top list is returned", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				var body resultsBody
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(len(body.TopItems), ShouldEqual, 3)
				So(body.TopItems[0].ItemID, ShouldEqual, "x1")
				So(body.TopItems[0].Rank, ShouldEqual, 1)
				So(body.TopItems[0].Score, ShouldAlmostEqual, 4.0)
				So(body.TopItems[1].ItemID, ShouldEqual, "x2")
				So(body.TopItems[2].ItemID, ShouldEqual, "y1")
				So(body.Result.SessionID, ShouldEqual, sessionID)
				So(len(body.Items), ShouldEqual, 3)
				So(body.Items[0].Title, ShouldEqual, "Drone")
			})

			Convey("Then the stored result can be fetched", func() {
				g := do(h, http.MethodGet, "/sessions/"+sessionID+"/results", "")
				So(g.Code, ShouldEqual, http.StatusOK)
				var body resultsBody
				So(json.Unmarshal(g.Body.Bytes(), &body), ShouldBeNil)
				So(len(body.TopItems), ShouldEqual, 3)
			})

			Convey("Then computing again conflicts", func() {
				again := do(h, http.MethodPost, "/sessions/"+sessionID+"/results", "")
				So(again.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(again).Code, ShouldEqual, "result_exists")
			})

			Convey("Then the completed session refuses swipes", func() {
				late := swipe(h, sessionID, "z9", "accept", 500)
				So(late.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(late).Code, ShouldEqual, "session_completed")
			})
		})

		Convey("When the same item is swiped twice", func() {
			So(swipe(h, sessionID, "x1", "accept", 100).Code, ShouldEqual, http.StatusCreated)
			w := swipe(h, sessionID, "x1", "reject", 100)

			Convey("Then the second swipe conflicts", func() {
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeError(w).Code, ShouldEqual, "duplicate_swipe")
			})
		})

		Convey("When results are requested before any swipe", func() {
			w := do(h, http.MethodPost, "/sessions/"+sessionID+"/results", "")

			Convey("Then no_swipes is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w).Code, ShouldEqual, "no_swipes")
			})
		})
	})
}

func TestServer_RequestErrors(t *testing.T) {
	Convey("Given the API router", t, func() {
		h := newHandler()

		Convey("When a swipe has an invalid session id and direction", func() {
			w := do(h, http.MethodPost, "/swipes", `{"session_id":"abc","item_id":"x1","direction":"up"}`)

			Convey("Then each failed field is reported", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "validation_failed")
				So(len(body.Fields), ShouldEqual, 2)
				So(body.Fields[0].Field, ShouldEqual, "session_id")
				So(body.Fields[1].Field, ShouldEqual, "direction")
			})
		})

		Convey("When a swipe has a non-positive duration", func() {
			w := do(h, http.MethodPost, "/swipes",
				`{"session_id":"6f1c3a52-8f57-4f43-9d9b-0a3c1f2e4b5d","item_id":"x1","direction":"accept","swipe_duration_ms":0}`)

			Convey("Then the request is rejected", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Fields[0].Field, ShouldEqual, "swipe_duration_ms")
			})
		})

		Convey("When the swipe targets an unknown session", func() {
			w := swipe(h, "6f1c3a52-8f57-4f43-9d9b-0a3c1f2e4b5d", "x1", "accept", 100)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w).Code, ShouldEqual, "session_not_found")
			})
		})

		Convey("When the body is empty or malformed", func() {
			empty := do(h, http.MethodPost, "/sessions", "")
			broken := do(h, http.MethodPost, "/sessions", `{"user_id":`)

			Convey("Then bad_request is returned", func() {
				So(empty.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(empty).Code, ShouldEqual, "bad_request")
				So(broken.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a session asks for too many cards", func() {
			w := do(h, http.MethodPost, "/sessions", `{"user_id":"u-1","total_cards":51}`)

			Convey("Then validation fails", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w).Fields[0].Tag, ShouldEqual, "lte")
			})
		})

		Convey("When an item batch is empty or has an item without id", func() {
			empty := do(h, http.MethodPut, "/items", `[]`)
			noID := do(h, http.MethodPut, "/items", `[{"title":"nameless"}]`)

			Convey("Then both are rejected", func() {
				So(empty.Code, ShouldEqual, http.StatusBadRequest)
				So(noID.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(noID).Code, ShouldEqual, "validation_failed")
			})
		})

		Convey("When the deck limit is malformed or out of range", func() {
			word := do(h, http.MethodGet, "/items?limit=many", "")
			huge := do(h, http.MethodGet, "/items?limit=500", "")

			Convey("Then both are bad requests", func() {
				So(word.Code, ShouldEqual, http.StatusBadRequest)
				So(huge.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(huge).Code, ShouldEqual, "bad_request")
			})
		})

		Convey("When the catalog is empty", func() {
			w := do(h, http.MethodGet, "/items", "")

			Convey("Then an empty deck is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
			})
		})

		Convey("When a result does not exist", func() {
			w := do(h, http.MethodGet, "/sessions/missing/results", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeError(w).Code, ShouldEqual, "result_not_found")
			})
		})
	})
}

type failingDeps struct{}

var errBackend = errors.New("connection refused")

func (failingDeps) GetStats() map[string]any { return map[string]any{} }
func (failingDeps) StartSession(context.Context, string, int) (model.Session, error) {
	return model.Session{}, errBackend
}
func (failingDeps) RecordSwipe(context.Context, service.SwipeInput) (model.Interaction, error) {
	return model.Interaction{}, errBackend
}
func (failingDeps) ComputeResults(context.Context, string) (service.Results, error) {
	return service.Results{}, errBackend
}
func (failingDeps) Result(context.Context, string) (service.Results, error) {
	return service.Results{}, errBackend
}
func (failingDeps) PutItems(context.Context, []model.CatalogItem) error { return errBackend }
func (failingDeps) Deck(context.Context, int) ([]model.CatalogItem, error) {
	return nil, errBackend
}

func TestServer_InternalErrors(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		h := api.NewServer(failingDeps{}).Routes(context.Background())

		Convey("When a session is created", func() {
			w := do(h, http.MethodPost, "/sessions", `{"user_id":"u-1"}`)

			Convey("Then a 500 hides the cause", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decodeError(w)
				So(body.Code, ShouldEqual, "internal_error")
				So(body.Message, ShouldEqual, api.ErrInternal.Error())
				So(body.Message, ShouldNotContainSubstring, errBackend.Error())
			})
		})
	})
}

func TestOpError(t *testing.T) {
	Convey("Given an error wrapped with a kind", t, func() {
		cause := errors.New("unexpected EOF")
		err := api.WrapKind("api.op", api.ErrBadRequest, cause)

		Convey("Then both kind and cause match", func() {
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: bad request: unexpected EOF")
		})

		Convey("Then wrapping nil yields nil", func() {
			So(api.WrapKind("api.op", api.ErrBadRequest, nil), ShouldBeNil)
			So(api.Wrap("api.op", nil), ShouldBeNil)
		})

		Convey("Then an op-only wrap keeps the cause", func() {
			err := api.Wrap("api.op", cause)
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeFalse)
			So(err.Error(), ShouldEqual, "api.op: unexpected EOF")
		})
	})
}
