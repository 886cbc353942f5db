package httpserver

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ancientgames/royal-ur/internal/game"
	"github.com/ancientgames/royal-ur/internal/store"
)

const testSchema = `
CREATE TABLE users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE COLLATE NOCASE,
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL,
    games_played  INTEGER NOT NULL DEFAULT 0,
    wins          INTEGER NOT NULL DEFAULT 0,
    streak        INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE matches (
    id           TEXT PRIMARY KEY,
    user_id      TEXT REFERENCES users(id),
    anonymous_id TEXT,
    status       TEXT NOT NULL DEFAULT 'playing',
    winner       TEXT,
    moves        INTEGER NOT NULL DEFAULT 0,
    started_at   TEXT NOT NULL,
    finished_at  TEXT
);`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	// A :memory: DSN is per-connection; pin the pool to one connection
	// so every query sees the same database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	srv := New(store.NewMemoryStore(), db)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	res, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	if out != nil && res.StatusCode < 300 {
		defer res.Body.Close()
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res
}

type newMatchResponse struct {
	MatchID string     `json:"matchId"`
	State   game.State `json:"state"`
}

func TestNewMatchAndState(t *testing.T) {
	ts := newTestServer(t)

	var created newMatchResponse
	res := postJSON(t, ts.URL+"/match/new", map[string]any{"seed": 7}, &created)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("new match: status %d", res.StatusCode)
	}
	if created.MatchID == "" {
		t.Fatal("missing match ID")
	}
	if created.State.Phase != game.PhaseAwaitRoll {
		t.Fatalf("phase = %s, want %s", created.State.Phase, game.PhaseAwaitRoll)
	}
	if len(created.State.Pieces) != 2*game.PiecesPerPlayer {
		t.Fatalf("pieces = %d, want %d", len(created.State.Pieces), 2*game.PiecesPerPlayer)
	}

	res2, err := http.Get(ts.URL + "/match/" + created.MatchID)
	if err != nil {
		t.Fatal(err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusOK {
		t.Fatalf("get state: status %d", res2.StatusCode)
	}
	var st game.State
	if err := json.NewDecoder(res2.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.ID != created.MatchID {
		t.Fatalf("state ID %q != match ID %q", st.ID, created.MatchID)
	}
}

func TestUnknownMatchIs404(t *testing.T) {
	ts := newTestServer(t)
	res := postJSON(t, ts.URL+"/match/doesnotexist/roll", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", res.StatusCode)
	}
}

func TestRollPhaseConflict(t *testing.T) {
	ts := newTestServer(t)
	var created newMatchResponse
	postJSON(t, ts.URL+"/match/new", map[string]any{"seed": 11}, &created)

	var first struct {
		Roll  int        `json:"roll"`
		State game.State `json:"state"`
	}
	res := postJSON(t, ts.URL+"/match/"+created.MatchID+"/roll", nil, &first)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("roll: status %d", res.StatusCode)
	}
	if first.Roll < 0 || first.Roll > 4 {
		t.Fatalf("roll out of range: %d", first.Roll)
	}
	if first.State.Phase != game.PhaseAwaitMove && first.State.Phase != game.PhaseAwaitEndTurn {
		t.Fatalf("phase after roll = %s", first.State.Phase)
	}

	// A second roll in the same turn must be rejected as a phase conflict.
	res2 := postJSON(t, ts.URL+"/match/"+created.MatchID+"/roll", nil, nil)
	if res2.StatusCode != http.StatusConflict {
		t.Fatalf("second roll: status %d, want 409", res2.StatusCode)
	}
}

func TestIllegalMoveIsUnprocessable(t *testing.T) {
	ts := newTestServer(t)
	var created newMatchResponse
	postJSON(t, ts.URL+"/match/new", map[string]any{"seed": 3}, &created)

	var rolled struct {
		Roll  int        `json:"roll"`
		State game.State `json:"state"`
	}
	postJSON(t, ts.URL+"/match/"+created.MatchID+"/roll", nil, &rolled)

	if rolled.State.Phase == game.PhaseAwaitMove {
		// Selecting an opponent piece is always illegal on the first turn.
		res := postJSON(t, ts.URL+"/match/"+created.MatchID+"/move",
			map[string]any{"piece": game.PiecesPerPlayer}, nil)
		if res.StatusCode != http.StatusUnprocessableEntity {
			t.Fatalf("opponent piece: status %d, want 422", res.StatusCode)
		}
	} else {
		// Dead roll: any move attempt is a phase conflict.
		res := postJSON(t, ts.URL+"/match/"+created.MatchID+"/move",
			map[string]any{"piece": 0}, nil)
		if res.StatusCode != http.StatusConflict {
			t.Fatalf("move after dead roll: status %d, want 409", res.StatusCode)
		}
	}
}

// TestPlayFullMatch drives a seeded match to completion through the
// HTTP API, always taking the first legal move.
func TestPlayFullMatch(t *testing.T) {
	ts := newTestServer(t)
	var created newMatchResponse
	postJSON(t, ts.URL+"/match/new", map[string]any{"seed": 20260823}, &created)
	base := ts.URL + "/match/" + created.MatchID

	const maxTurns = 100000
	for turn := 0; turn < maxTurns; turn++ {
		var rolled struct {
			Roll  int        `json:"roll"`
			State game.State `json:"state"`
		}
		res := postJSON(t, base+"/roll", nil, &rolled)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("turn %d: roll status %d", turn, res.StatusCode)
		}

		st := rolled.State
		if st.Phase == game.PhaseAwaitEndTurn {
			var next game.State
			if res := postJSON(t, base+"/end-turn", nil, &next); res.StatusCode != http.StatusOK {
				t.Fatalf("turn %d: end-turn status %d", turn, res.StatusCode)
			}
			continue
		}
		if len(st.LegalMoves) == 0 {
			t.Fatalf("turn %d: move phase with no legal moves", turn)
		}
		var moved struct {
			Outcome game.MoveOutcome `json:"outcome"`
			State   game.State       `json:"state"`
		}
		if res := postJSON(t, base+"/move", map[string]any{"piece": st.LegalMoves[0].Piece}, &moved); res.StatusCode != http.StatusOK {
			t.Fatalf("turn %d: move status %d", turn, res.StatusCode)
		}
		if moved.State.Winner != nil {
			if moved.State.Phase != game.PhaseGameOver {
				t.Fatalf("winner set but phase = %s", moved.State.Phase)
			}
			// Terminal: further rolls are rejected until a reset.
			if res := postJSON(t, base+"/roll", nil, nil); res.StatusCode != http.StatusConflict {
				t.Fatalf("roll after game over: status %d, want 409", res.StatusCode)
			}
			var reset game.State
			if res := postJSON(t, base+"/reset", nil, &reset); res.StatusCode != http.StatusOK {
				t.Fatalf("reset status %d", res.StatusCode)
			}
			if reset.Phase != game.PhaseAwaitRoll || reset.Winner != nil {
				t.Fatalf("reset state: %+v", reset)
			}
			return
		}
	}
	t.Fatalf("match did not finish within %d turns", maxTurns)
}

// newCookieClient returns an HTTP client that keeps session cookies.
func newCookieClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func TestSignupLoginAndStats(t *testing.T) {
	ts := newTestServer(t)
	jar := newCookieClient(t)

	res, err := jar.Post(ts.URL+"/auth/signup", "application/json",
		bytes.NewBufferString(`{"Username":"urfan","Password":"longenough1"}`))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("signup: status %d", res.StatusCode)
	}

	res, err = jar.Get(ts.URL + "/auth/me")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: status %d", res.StatusCode)
	}
	var me struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(res.Body).Decode(&me); err != nil {
		t.Fatal(err)
	}
	if me.Username != "urfan" {
		t.Fatalf("username = %q", me.Username)
	}

	res, err = jar.Get(ts.URL + "/stats/me")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d", res.StatusCode)
	}
	var stats struct {
		GamesPlayed int `json:"gamesPlayed"`
		Wins        int `json:"wins"`
	}
	if err := json.NewDecoder(res.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.GamesPlayed != 0 || stats.Wins != 0 {
		t.Fatalf("fresh stats = %+v", stats)
	}

	// Wrong password is rejected.
	res, err = jar.Post(ts.URL+"/auth/login", "application/json",
		bytes.NewBufferString(`{"Username":"urfan","Password":"wrongwrong"}`))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", res.StatusCode)
	}
}

func TestStatsRequireAuth(t *testing.T) {
	ts := newTestServer(t)
	res, err := http.Get(ts.URL + "/stats/me")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", res.StatusCode)
	}
}
