/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Stepping the world and the resulting ledger rows
- Settings changes through PATCH (persisted per field)
- Manual actions and idempotency keys
- Installing and removing upgrades
- Players and snapshot endpoints
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/upgrade-engine/factory"
	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/store/sqlite"
	"github.com/warp/upgrade-engine/tuning"
	"github.com/warp/upgrade-engine/xp"
)

func setupTestHandler(t *testing.T) (*Handler, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewHandler(store, tuning.Default()), store
}

func do(t *testing.T, r *chi.Mux, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func loadScenario(t *testing.T, r *chi.Mux, id string) {
	t.Helper()
	rec := do(t, r, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("load %s: status %d: %s", id, rec.Code, rec.Body.String())
	}
}

func findPlayer(t *testing.T, r *chi.Mux, id string) PlayerDTO {
	t.Helper()
	for _, p := range decode[[]PlayerDTO](t, do(t, r, http.MethodGet, "/api/players", nil, nil)) {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("player %s not found", id)
	return PlayerDTO{}
}

func TestStepWorld_DrainsPlayerAboveThreshold(t *testing.T) {
	// GIVEN: A level 15 player beside an input pump set to level 10
	h, _ := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "player-above-threshold")

	// WHEN: Stepping one tick
	rec := do(t, r, http.MethodPost, "/api/world/step", StepRequest{Ticks: 1}, nil)

	// THEN: 155 points (3100 units) move into the tank
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[StepResponse](t, rec)
	if resp.Tick != 1 || len(resp.Transfers) != 1 {
		t.Fatalf("Expected one transfer at tick 1, got %+v", resp)
	}
	tr := resp.Transfers[0]
	if tr.Points != 155 || tr.Units != 3100 || tr.Direction != "input" {
		t.Errorf("Unexpected transfer: %+v", tr)
	}
	if tr.IdempotencyKey != "tank-1/xp-pump-1/steve/1" {
		t.Errorf("Unexpected idempotency key %q", tr.IdempotencyKey)
	}
	if p := findPlayer(t, r, "steve"); p.Level != 10 {
		t.Errorf("Expected steve at level 10, got %d", p.Level)
	}

	// The ledger and the saved buffer agree
	ledger := decode[[]TransferDTO](t, do(t, r, http.MethodGet, "/api/containers/tank-1/transfers", nil, nil))
	if len(ledger) != 1 || ledger[0].ID != tr.ID {
		t.Errorf("Ledger mismatch: %+v", ledger)
	}
	buffers, err := h.Store.LoadBuffers(context.Background(), "tank-1")
	if err != nil {
		t.Fatalf("LoadBuffers: %v", err)
	}
	if got := buffers[generic.TagFluid].Stored; got != 3100 {
		t.Errorf("Expected saved buffer of 3100, got %d", got)
	}
}

func TestStepWorld_RejectsBadTickCounts(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := NewRouter(h)

	for _, body := range []string{`{"ticks":0}`, `{"ticks":10001}`, `{"ticks":`} {
		rec := do(t, r, http.MethodPost, "/api/world/step", body, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}

	// No body steps one tick
	rec := do(t, r, http.MethodPost, "/api/world/step", nil, nil)
	if rec.Code != http.StatusOK || decode[StepResponse](t, rec).Tick != 1 {
		t.Errorf("Expected a single tick, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPatchUpgrade_PersistsEachField(t *testing.T) {
	// GIVEN: A pump switched off
	h, store := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "direction-off")

	// WHEN: Switching it to input with a new level
	rec := do(t, r, http.MethodPatch, "/api/upgrades/xp-pump-1", map[string]any{"direction": "INPUT", "level": 12}, nil)

	// THEN: The settings read back and the record is stored
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	dto := decode[UpgradeDTO](t, rec)
	if dto.Settings == nil || dto.Settings.Direction != "input" || dto.Settings.Level != 12 {
		t.Fatalf("Unexpected settings: %+v", dto.Settings)
	}

	stored, err := store.GetUpgrade(context.Background(), "xp-pump-1")
	if err != nil || stored == nil {
		t.Fatalf("GetUpgrade: %v %v", stored, err)
	}
	if stored.Fields[generic.KeyDirection] != "input" {
		t.Errorf("Expected stored direction input, got %v", stored.Fields[generic.KeyDirection])
	}
	if generic.NewRecord(stored.Fields, nil).IntOr(generic.KeyLevel, 0) != 12 {
		t.Errorf("Expected stored level 12, got %v", stored.Fields[generic.KeyLevel])
	}

	// AND: The next tick drains steve to level 12
	resp := decode[StepResponse](t, do(t, r, http.MethodPost, "/api/world/step", nil, nil))
	if len(resp.Transfers) != 1 || resp.Transfers[0].Points != 99 {
		t.Errorf("Expected 99 points to move, got %+v", resp.Transfers)
	}
}

func TestPatchUpgrade_Errors(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "direction-off")

	cases := []struct {
		path string
		body string
		want int
	}{
		{"/api/upgrades/xp-pump-1", `{"direction":"sideways"}`, http.StatusBadRequest},
		{"/api/upgrades/xp-pump-1", `{`, http.StatusBadRequest},
		{"/api/upgrades/nope", `{"level":3}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(t, r, http.MethodPatch, tc.path, tc.body, nil)
		if rec.Code != tc.want {
			t.Errorf("PATCH %s %s: expected %d, got %d", tc.path, tc.body, tc.want, rec.Code)
		}
	}
}

func TestPerformAction_GiveAllWithIdempotencyKey(t *testing.T) {
	// GIVEN: A full tank and a level 0 player
	h, _ := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "give-all")
	headers := map[string]string{"Idempotency-Key": "give-all-1"}

	// WHEN: Performing give-all
	rec := do(t, r, http.MethodPost, "/api/upgrades/xp-pump-1/actions/give-all", ActionRequest{PlayerID: "steve"}, headers)

	// THEN: The whole tank moves to the player as a manual transfer
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decode[ActionResponse](t, rec)
	if resp.Transfer == nil || !resp.Transfer.Manual || resp.Transfer.Direction != "output" {
		t.Fatalf("Unexpected transfer: %+v", resp.Transfer)
	}
	if resp.Transfer.IdempotencyKey != "give-all-1" {
		t.Errorf("Expected the client key, got %q", resp.Transfer.IdempotencyKey)
	}
	if resp.Player.TotalPoints != 800 {
		t.Errorf("Expected 800 points, got %d", resp.Player.TotalPoints)
	}

	// AND: A retry with the same key is rejected
	rec = do(t, r, http.MethodPost, "/api/upgrades/xp-pump-1/actions/give-all", ActionRequest{PlayerID: "steve"}, headers)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on retry, got %d", rec.Code)
	}

	// AND: Without a key, an empty tank still answers with the player only
	rec = do(t, r, http.MethodPost, "/api/upgrades/xp-pump-1/actions/give-all", ActionRequest{PlayerID: "steve"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if resp := decode[ActionResponse](t, rec); resp.Transfer != nil {
		t.Errorf("Expected no transfer from an empty tank, got %+v", resp.Transfer)
	}

	ledger := decode[[]TransferDTO](t, do(t, r, http.MethodGet, "/api/containers/tank-1/transfers", nil, nil))
	if len(ledger) != 1 {
		t.Errorf("Expected a single ledger row, got %d", len(ledger))
	}
}

func TestPerformAction_Errors(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "worn-backpack")

	cases := []struct {
		name   string
		path   string
		player string
		want   int
	}{
		{"unknown action", "/api/upgrades/xp-pump-alex/actions/fly", "alex", http.StatusBadRequest},
		{"unknown player", "/api/upgrades/xp-pump-alex/actions/take-all", "nobody", http.StatusNotFound},
		{"mob is not a player", "/api/upgrades/xp-pump-alex/actions/take-all", "zombie", http.StatusBadRequest},
		{"unknown upgrade", "/api/upgrades/nope/actions/take-all", "alex", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(t, r, http.MethodPost, tc.path, ActionRequest{PlayerID: tc.player}, nil)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}

func TestInstallAndRemoveUpgrade(t *testing.T) {
	h, store := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "fluid-pump")
	ctx := context.Background()

	// Install an experience pump next to the lava pump
	rec := do(t, r, http.MethodPost, "/api/containers/tank-lava/upgrades", `{"id":"xp-2","kind":"xp_pump"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	dto := decode[UpgradeDTO](t, rec)
	if dto.ContainerID != "tank-lava" || dto.Settings.Direction != "input" || dto.Settings.Level != xp.DefaultLevel {
		t.Errorf("Unexpected upgrade: %+v", dto)
	}
	if len(dto.Actions) != len(xp.Actions) {
		t.Errorf("Expected manual actions, got %v", dto.Actions)
	}
	if rec, _ := store.GetUpgrade(ctx, "xp-2"); rec == nil {
		t.Error("Expected the record to be stored")
	}

	// Errors
	cases := []struct {
		name string
		path string
		body string
		want int
	}{
		{"id used by another container", "/api/containers/tank-lava/upgrades", factory.FluidPumpJSON("fluid-pump-in", "tank-lava", "input"), http.StatusConflict},
		{"schema violation", "/api/containers/tank-lava/upgrades", `{"id":"x"}`, http.StatusBadRequest},
		{"unknown kind", "/api/containers/tank-lava/upgrades", `{"id":"x","kind":"teleporter"}`, http.StatusBadRequest},
		{"unknown container", "/api/containers/nope/upgrades", `{"id":"x","kind":"xp_pump"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := do(t, r, http.MethodPost, tc.path, tc.body, nil)
		if rec.Code != tc.want {
			t.Errorf("%s: expected %d, got %d: %s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}

	// Remove
	rec = do(t, r, http.MethodDelete, "/api/containers/tank-lava/upgrades/xp-2", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/upgrades/xp-2", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after removal, got %d", rec.Code)
	}
	if rec, _ := store.GetUpgrade(ctx, "xp-2"); rec != nil {
		t.Error("Expected the record to be deleted")
	}
	if rec := do(t, r, http.MethodDelete, "/api/containers/tank-lava/upgrades/xp-2", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on second removal, got %d", rec.Code)
	}
}

func TestGetContainerTransfers_TickRange(t *testing.T) {
	// GIVEN: The water pump fired at ticks 1, 21 and 41
	h, _ := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "fluid-pump")
	resp := decode[StepResponse](t, do(t, r, http.MethodPost, "/api/world/step", StepRequest{Ticks: 41}, nil))
	if len(resp.Transfers) != 5 {
		t.Fatalf("Expected 3 water and 2 lava transfers, got %d", len(resp.Transfers))
	}

	// WHEN/THEN: Ranges bound by tick
	all := decode[[]TransferDTO](t, do(t, r, http.MethodGet, "/api/containers/tank-water/transfers", nil, nil))
	if len(all) != 3 {
		t.Errorf("Expected 3 transfers, got %d", len(all))
	}
	later := decode[[]TransferDTO](t, do(t, r, http.MethodGet, "/api/containers/tank-water/transfers?from=2", nil, nil))
	if len(later) != 2 || later[0].Tick != 21 {
		t.Errorf("Expected ticks 21 and 41, got %+v", later)
	}
	early := decode[[]TransferDTO](t, do(t, r, http.MethodGet, "/api/containers/tank-water/transfers?to=21", nil, nil))
	if len(early) != 2 {
		t.Errorf("Expected ticks 1 and 21, got %d rows", len(early))
	}

	if rec := do(t, r, http.MethodGet, "/api/containers/tank-water/transfers?from=abc", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad tick, got %d", rec.Code)
	}
}

func TestPlayers_CreateMoveAndAdjust(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := NewRouter(h)

	level := 10
	rec := do(t, r, http.MethodPost, "/api/players", CreatePlayerRequest{ID: "alex", Level: &level, TotalPoints: 5}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}
	if p := decode[PlayerDTO](t, rec); p.TotalPoints != 160 || p.Name != "alex" {
		t.Errorf("Level should win over points: %+v", p)
	}

	rec = do(t, r, http.MethodPost, "/api/players/alex/experience", ExperienceRequest{DeltaPoints: 18}, nil)
	if p := decode[PlayerDTO](t, rec); p.TotalPoints != 178 || p.Level != 10 {
		t.Errorf("Unexpected player after adjust: %+v", p)
	}

	rec = do(t, r, http.MethodPut, "/api/players/alex/position", PositionRequest{Pos: [3]float64{4, 70, -2}}, nil)
	if p := decode[PlayerDTO](t, rec); p.Pos != [3]float64{4, 70, -2} {
		t.Errorf("Unexpected position: %v", p.Pos)
	}

	if rec := do(t, r, http.MethodPost, "/api/players", `{"name":"no id"}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without id, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodPut, "/api/players/ghost/position", PositionRequest{}, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown player, got %d", rec.Code)
	}
}

func TestGetWorld_IncludesScenarioAndContainers(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "worn-backpack")

	w := decode[WorldDTO](t, do(t, r, http.MethodGet, "/api/world", nil, nil))

	if w.Scenario != "worn-backpack" {
		t.Errorf("Expected scenario worn-backpack, got %q", w.Scenario)
	}
	if len(w.Players) != 2 || len(w.Mobs) != 1 || len(w.Containers) != 2 {
		t.Errorf("Unexpected world: %d players, %d mobs, %d containers", len(w.Players), len(w.Mobs), len(w.Containers))
	}
	if w.Containers[0].Holder != "alex" {
		t.Errorf("Expected backpack-alex worn by alex, got %q", w.Containers[0].Holder)
	}

	if rec := do(t, r, http.MethodGet, "/api/containers/backpack-zombie", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/api/containers/nope", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestSaveWorld_WritesLoadableSnapshot(t *testing.T) {
	h, _ := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "player-above-threshold")

	// Without a path the save fails
	if rec := do(t, r, http.MethodPost, "/api/world/save", nil, nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 without a path, got %d", rec.Code)
	}

	h.SnapshotPath = filepath.Join(t.TempDir(), "world.snap")
	do(t, r, http.MethodPost, "/api/world/step", nil, nil)
	rec := do(t, r, http.MethodPost, "/api/world/save", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp := decode[SnapshotResponse](t, rec); resp.Tick != 1 {
		t.Errorf("Expected tick 1, got %d", resp.Tick)
	}

	// A fresh handler picks the world up from the file
	h2, _ := setupTestHandler(t)
	if err := h2.LoadSnapshot(h.SnapshotPath); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got := h2.World.CurrentTick(); got != 1 {
		t.Errorf("Expected tick 1, got %d", got)
	}
	if p := findPlayer(t, NewRouter(h2), "steve"); p.Level != 10 {
		t.Errorf("Expected steve at level 10, got %d", p.Level)
	}
}

func TestRestoreFromStore_OverlaysRecordsAndBuffers(t *testing.T) {
	// GIVEN: A run that changed settings and moved experience
	h, store := setupTestHandler(t)
	r := NewRouter(h)
	loadScenario(t, r, "player-above-threshold")
	do(t, r, http.MethodPatch, "/api/upgrades/xp-pump-1", map[string]any{"level": 12}, nil)
	do(t, r, http.MethodPost, "/api/world/step", nil, nil)

	// WHEN: A restarted server rebuilds the scenario and restores from the store
	ctx := context.Background()
	h2 := NewHandler(store, tuning.Default())
	s, err := BuildScenario(ctx, "player-above-threshold", factory.NewUpgradeFactory(h2.Tuning, nil), h2.Tuning)
	if err != nil {
		t.Fatalf("BuildScenario: %v", err)
	}
	h2.World.Replace(s)
	if err := h2.RestoreFromStore(ctx); err != nil {
		t.Fatalf("RestoreFromStore: %v", err)
	}

	// THEN: The clock resumes and the stored level and tank contents win
	if got := h2.World.CurrentTick(); got != 1 {
		t.Errorf("Expected the clock to resume at tick 1, got %d", got)
	}
	u := decode[UpgradeDTO](t, do(t, NewRouter(h2), http.MethodGet, "/api/upgrades/xp-pump-1", nil, nil))
	if u.Settings.Level != 12 {
		t.Errorf("Expected level 12, got %d", u.Settings.Level)
	}
	c := decode[ContainerDTO](t, do(t, NewRouter(h2), http.MethodGet, "/api/containers/tank-1", nil, nil))
	if c.Buffers[0].Stored != 1980 {
		t.Errorf("Expected 1980 units restored, got %d", c.Buffers[0].Stored)
	}
}

// slowAppendStore delays ledger appends the way a real database round trip
// does, widening any gap between the key check and the write.
type slowAppendStore struct {
	*sqlite.Store
}

func (s slowAppendStore) Append(ctx context.Context, t generic.Transfer) error {
	time.Sleep(5 * time.Millisecond)
	return s.Store.Append(ctx, t)
}

func TestPerformAction_ConcurrentSameKeyMovesOnce(t *testing.T) {
	// GIVEN: steve at level 15 and a ledger with slow appends
	base, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { base.Close() })
	h := NewHandler(slowAppendStore{base}, tuning.Default())
	r := NewRouter(h)
	loadScenario(t, r, "direction-off")

	// WHEN: Two take-levels requests race with the same key
	body, _ := json.Marshal(ActionRequest{PlayerID: "steve"})
	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/upgrades/xp-pump-1/actions/take-levels", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Idempotency-Key", "take-1")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	// THEN: One request moved one level, the other was rejected untouched
	counts := map[int]int{}
	for _, c := range codes {
		counts[c]++
	}
	if counts[http.StatusOK] != 1 || counts[http.StatusConflict] != 1 {
		t.Fatalf("Expected one 200 and one 409, got %v", counts)
	}
	if p := findPlayer(t, r, "steve"); p.Level != 14 {
		t.Errorf("Expected steve at level 14, got %d", p.Level)
	}
	ledger := decode[[]TransferDTO](t, do(t, r, http.MethodGet, "/api/containers/tank-1/transfers", nil, nil))
	if len(ledger) != 1 {
		t.Errorf("Expected 1 ledger row, got %d", len(ledger))
	}
}

// failingBatchStore refuses every batch append.
type failingBatchStore struct {
	*sqlite.Store
}

func (s failingBatchStore) AppendBatch(context.Context, []generic.Transfer) error {
	return errors.New("disk full")
}

func TestAdvance_FailedLedgerWriteKeepsTicking(t *testing.T) {
	// GIVEN: A world whose ledger writes fail
	base, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { base.Close() })
	h := NewHandler(failingBatchStore{base}, tuning.Default())
	loadScenario(t, NewRouter(h), "player-above-threshold")
	ctx := context.Background()

	// WHEN: Ticking twice
	ts, err := h.Advance(ctx)

	// THEN: The first tick reports the error but is not rolled back
	if err == nil {
		t.Fatal("Expected the append error")
	}
	if len(ts) != 1 || h.World.CurrentTick() != 1 {
		t.Fatalf("Expected the tick to stand, got %d transfers at tick %d", len(ts), h.World.CurrentTick())
	}
	if _, err := h.Advance(ctx); err != nil {
		t.Errorf("Expected the next tick to run, got %v", err)
	}
	if got := h.World.CurrentTick(); got != 2 {
		t.Errorf("Expected tick 2, got %d", got)
	}
}
