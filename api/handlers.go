/*
handlers.go - HTTP API handlers for the upgrade automation engine

PURPOSE:
  Exposes the simulated world and its container upgrades via REST API.
  This is the "UI collaborator" of the engine: it reads settings, changes
  them through the per-field setters and triggers manual transfers.

ENDPOINTS:
  World:
    GET    /api/world                          World summary
    POST   /api/world/step                     Advance N ticks now
    POST   /api/world/save                     Write a snapshot

  Players:
    GET    /api/players                        List players
    POST   /api/players                        Create player
    PUT    /api/players/{id}/position          Move player
    POST   /api/players/{id}/experience        Set level or adjust points

  Containers:
    GET    /api/containers                     List containers
    GET    /api/containers/{id}                Container details
    GET    /api/containers/{id}/transfers      Ledger (?from=&to= ticks)
    POST   /api/containers/{id}/upgrades       Install upgrade (record JSON)
    DELETE /api/containers/{id}/upgrades/{upgradeID}

  Upgrades:
    GET    /api/upgrades/{id}                  Settings + cooldown
    PATCH  /api/upgrades/{id}                  Change settings
    POST   /api/upgrades/{id}/actions/{action} Manual transfer

ARCHITECTURE:
  Handler holds all dependencies. Every read or mutation of the world goes
  through World.Do, so requests never interleave with a tick. Ledger and
  buffer writes happen inside the same critical section as the mutation
  they record, so an idempotency key is checked and recorded atomically.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Container, upgrade or player not found
  - 409: Conflict (idempotency, duplicate upgrade ID)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - scheduler.go: The tick driver
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/warp/upgrade-engine/factory"
	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/snapshot"
	"github.com/warp/upgrade-engine/tuning"
	"github.com/warp/upgrade-engine/world"
	"github.com/warp/upgrade-engine/xp"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the API persists, plus a reset for scenario loads.
type Store interface {
	generic.FullStore
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	World   *world.World
	Store   Store
	Ledger  *generic.DefaultLedger
	Factory *factory.UpgradeFactory
	Tuning  tuning.Tuning

	// SnapshotPath is where /api/world/save and the tick driver write.
	SnapshotPath string
	WorldID      string

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler over an empty world.
func NewHandler(store Store, t tuning.Tuning) *Handler {
	return &Handler{
		World:   world.New(),
		Store:   store,
		Ledger:  generic.NewLedger(store),
		Factory: factory.NewUpgradeFactory(t, store),
		Tuning:  t,
		WorldID: "default",
	}
}

func (h *Handler) CurrentScenario() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentScenario
}

func (h *Handler) setCurrentScenario(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentScenario = id
}

// =============================================================================
// TICKING AND PERSISTENCE
// =============================================================================

// Advance runs one tick, appends its transfers to the ledger and saves the
// buffers of every container that moved something.
//
// A failed write does not roll the tick back. The world stays ahead of the
// ledger, the error is returned and the tick driver logs it and keeps
// ticking. Buffers are saved again on the next tick that moves them;
// RestoreFromStore only sees what was written.
func (h *Handler) Advance(ctx context.Context) ([]generic.Transfer, error) {
	var ts []generic.Transfer
	err := h.World.Do(func(s *world.State) error {
		ts = s.Advance()
		if len(ts) == 0 {
			return nil
		}
		if err := h.Ledger.AppendBatch(ctx, ts); err != nil {
			return fmt.Errorf("append transfers: %w", err)
		}
		return h.saveBuffers(ctx, bufferStatesOf(s, ts))
	})
	return ts, err
}

func bufferStatesOf(s *world.State, ts []generic.Transfer) map[generic.ContainerID]map[string]generic.BufferState {
	out := make(map[generic.ContainerID]map[string]generic.BufferState)
	for _, t := range ts {
		if _, done := out[t.ContainerID]; done {
			continue
		}
		c, err := s.Container(t.ContainerID)
		if err != nil {
			continue
		}
		out[c.ID] = containerBufferStates(c)
	}
	return out
}

func containerBufferStates(c *generic.Container) map[string]generic.BufferState {
	m := make(map[string]generic.BufferState)
	for _, tag := range c.BufferTags() {
		if b, ok := c.Buffer(tag).Get(); ok {
			m[tag] = b.State()
		}
	}
	return m
}

func (h *Handler) saveBuffers(ctx context.Context, states map[generic.ContainerID]map[string]generic.BufferState) error {
	for cid, m := range states {
		for tag, st := range m {
			if err := h.Store.SaveBuffer(ctx, cid, tag, st); err != nil {
				return fmt.Errorf("save buffer %s/%s: %w", cid, tag, err)
			}
		}
	}
	return nil
}

// SaveSnapshot writes the world to SnapshotPath.
func (h *Handler) SaveSnapshot() (snapshot.SnapshotV1, error) {
	if h.SnapshotPath == "" {
		return snapshot.SnapshotV1{}, errors.New("no snapshot path configured")
	}
	var snap snapshot.SnapshotV1
	_ = h.World.Do(func(s *world.State) error {
		snap = snapshot.Export(s, h.Factory, h.WorldID)
		return nil
	})
	return snap, snapshot.WriteSnapshot(h.SnapshotPath, snap)
}

// LoadSnapshot replaces the world with the snapshot at path. Gates open.
func (h *Handler) LoadSnapshot(path string) error {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return err
	}
	s, err := snapshot.Import(snap, h.Factory)
	if err != nil {
		return err
	}
	h.World.Replace(s)
	h.WorldID = snap.Header.WorldID
	return nil
}

// RestoreFromStore overlays persisted upgrade records and buffer states on
// the current world. Upgrades without a stored record are persisted now.
// The clock resumes after the last recorded tick so derived idempotency
// keys do not collide with earlier runs. A tick whose ledger write failed
// (see Advance) is not replayed; buffers come back as last saved.
func (h *Handler) RestoreFromStore(ctx context.Context) error {
	return h.World.Do(func(s *world.State) error {
		for _, c := range s.Containers() {
			history, err := h.Ledger.Transfers(ctx, c.ID)
			if err != nil {
				return err
			}
			if n := len(history); n > 0 && history[n-1].Tick > s.CurrentTick() {
				s.SetTick(history[n-1].Tick)
			}

			buffers, err := h.Store.LoadBuffers(ctx, c.ID)
			if err != nil {
				return err
			}
			for tag, st := range buffers {
				c.PutBuffer(tag, generic.RestoreBuffer(st))
			}

			recs, err := h.Store.ListUpgrades(ctx, c.ID)
			if err != nil {
				return err
			}
			stored := make(map[generic.UpgradeID]bool, len(recs))
			for _, rec := range recs {
				if _, err := h.Factory.Restore(c, rec); err != nil {
					return err
				}
				stored[rec.ID] = true
			}
			for _, u := range c.Upgrades() {
				if stored[u.ID()] {
					continue
				}
				restored, err := h.Factory.Restore(c, generic.UpgradeRecord{
					ID: u.ID(), ContainerID: c.ID, Kind: u.Kind(), Fields: u.Record().Fields(),
				})
				if err != nil {
					return err
				}
				if err := restored.Record().Save(); err != nil {
					return err
				}
			}
		}
		s.ResetCooldowns()
		return nil
	})
}

// =============================================================================
// WORLD HANDLERS
// =============================================================================

// GetWorld returns the whole world.
func (h *Handler) GetWorld(w http.ResponseWriter, r *http.Request) {
	var dto WorldDTO
	_ = h.World.Do(func(s *world.State) error {
		dto = toWorldDTO(s)
		return nil
	})
	dto.Scenario = h.CurrentScenario()
	writeJSON(w, http.StatusOK, dto)
}

func toWorldDTO(s *world.State) WorldDTO {
	dto := WorldDTO{
		Tick:       uint64(s.CurrentTick()),
		Players:    []PlayerDTO{},
		Mobs:       []MobDTO{},
		Containers: []ContainerDTO{},
	}
	for _, e := range s.Entities() {
		switch v := e.(type) {
		case *xp.Player:
			dto.Players = append(dto.Players, toPlayerDTO(v))
		case *world.Mob:
			dto.Mobs = append(dto.Mobs, toMobDTO(v))
		}
	}
	for _, c := range s.Containers() {
		dto.Containers = append(dto.Containers, toContainerDTO(c))
	}
	return dto
}

// StepWorld advances the world immediately. Body is optional.
func (h *Handler) StepWorld(w http.ResponseWriter, r *http.Request) {
	req := StepRequest{Ticks: 1}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.Ticks <= 0 || req.Ticks > 10000 {
		writeError(w, http.StatusBadRequest, "ticks must be between 1 and 10000", nil)
		return
	}

	all := []generic.Transfer{}
	for i := 0; i < req.Ticks; i++ {
		ts, err := h.Advance(r.Context())
		if err != nil {
			writeDomainError(w, "Failed to persist tick", err)
			return
		}
		all = append(all, ts...)
	}
	writeJSON(w, http.StatusOK, StepResponse{
		Tick:      uint64(h.World.CurrentTick()),
		Transfers: toTransferDTOs(all),
	})
}

// SaveWorld writes a snapshot now.
func (h *Handler) SaveWorld(w http.ResponseWriter, r *http.Request) {
	snap, err := h.SaveSnapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, SnapshotResponse{Path: h.SnapshotPath, Tick: snap.Header.Tick})
}

// =============================================================================
// PLAYER HANDLERS
// =============================================================================

func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	dtos := []PlayerDTO{}
	_ = h.World.Do(func(s *world.State) error {
		for _, e := range s.Entities() {
			if p, ok := e.(*xp.Player); ok {
				dtos = append(dtos, toPlayerDTO(p))
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req CreatePlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	p := xp.NewPlayer(generic.EntityID(req.ID), req.Name, vec3(req.Pos))
	if req.Level != nil {
		p.SetTotalPoints(xp.AmountForLevel(*req.Level))
	} else {
		p.SetTotalPoints(req.TotalPoints)
	}

	var dto PlayerDTO
	_ = h.World.Do(func(s *world.State) error {
		s.AddEntity(p)
		dto = toPlayerDTO(p)
		return nil
	})
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) SetPlayerPosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.withPlayer(w, r, func(p *xp.Player) {
		p.SetPosition(vec3(req.Pos))
	})
}

func (h *Handler) AdjustExperience(w http.ResponseWriter, r *http.Request) {
	var req ExperienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	h.withPlayer(w, r, func(p *xp.Player) {
		if req.Level != nil {
			p.SetTotalPoints(xp.AmountForLevel(*req.Level))
			return
		}
		p.AdjustPoints(req.DeltaPoints)
	})
}

// withPlayer runs fn on the {id} player under the world lock and writes
// the updated player.
func (h *Handler) withPlayer(w http.ResponseWriter, r *http.Request, fn func(p *xp.Player)) {
	id := generic.EntityID(chi.URLParam(r, "id"))
	var dto PlayerDTO
	err := h.World.Do(func(s *world.State) error {
		p, err := playerOf(s, id)
		if err != nil {
			return err
		}
		fn(p)
		dto = toPlayerDTO(p)
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to update player", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

func playerOf(s *world.State, id generic.EntityID) (*xp.Player, error) {
	e, err := s.Entity(id)
	if err != nil {
		return nil, err
	}
	p, ok := e.(*xp.Player)
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrNotAnActor, id)
	}
	return p, nil
}

// =============================================================================
// CONTAINER HANDLERS
// =============================================================================

func (h *Handler) ListContainers(w http.ResponseWriter, r *http.Request) {
	dtos := []ContainerDTO{}
	_ = h.World.Do(func(s *world.State) error {
		for _, c := range s.Containers() {
			dtos = append(dtos, toContainerDTO(c))
		}
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetContainer(w http.ResponseWriter, r *http.Request) {
	id := generic.ContainerID(chi.URLParam(r, "id"))
	var dto ContainerDTO
	err := h.World.Do(func(s *world.State) error {
		c, err := s.Container(id)
		if err != nil {
			return err
		}
		dto = toContainerDTO(c)
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to get container", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetContainerTransfers returns the ledger of a container. Optional
// ?from= and ?to= bound the tick range.
func (h *Handler) GetContainerTransfers(w http.ResponseWriter, r *http.Request) {
	id := generic.ContainerID(chi.URLParam(r, "id"))
	q := r.URL.Query()

	var (
		ts  []generic.Transfer
		err error
	)
	if q.Get("from") != "" || q.Get("to") != "" {
		from, ferr := parseTick(q.Get("from"), 0)
		to, terr := parseTick(q.Get("to"), ^generic.Tick(0)>>1)
		if ferr != nil || terr != nil {
			writeError(w, http.StatusBadRequest, "Invalid tick range", errors.Join(ferr, terr))
			return
		}
		ts, err = h.Ledger.TransfersInRange(r.Context(), id, from, to)
	} else {
		ts, err = h.Ledger.Transfers(r.Context(), id)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load transfers", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransferDTOs(ts))
}

func parseTick(s string, def generic.Tick) (generic.Tick, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, err
	}
	return generic.Tick(n), nil
}

// InstallUpgrade installs an upgrade from a record body.
func (h *Handler) InstallUpgrade(w http.ResponseWriter, r *http.Request) {
	cid := generic.ContainerID(chi.URLParam(r, "id"))
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	uj, err := h.Factory.Parse(raw)
	if err != nil {
		writeDomainError(w, "Invalid upgrade record", err)
		return
	}

	var dto UpgradeDTO
	err = h.World.Do(func(s *world.State) error {
		c, err := s.Container(cid)
		if err != nil {
			return err
		}
		if other, _, err := s.FindUpgrade(generic.UpgradeID(uj.ID)); err == nil && other.ID != c.ID {
			return fmt.Errorf("%w: %s in %s", generic.ErrUpgradeExists, uj.ID, other.ID)
		}
		u, err := h.Factory.Install(r.Context(), c, uj)
		if err != nil {
			return err
		}
		dto = toUpgradeDTO(c.ID, u)
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to install upgrade", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) RemoveUpgrade(w http.ResponseWriter, r *http.Request) {
	cid := generic.ContainerID(chi.URLParam(r, "id"))
	uid := generic.UpgradeID(chi.URLParam(r, "upgradeID"))
	err := h.World.Do(func(s *world.State) error {
		c, err := s.Container(cid)
		if err != nil {
			return err
		}
		return h.Factory.Uninstall(r.Context(), c, uid)
	})
	if err != nil {
		writeDomainError(w, "Failed to remove upgrade", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// UPGRADE HANDLERS
// =============================================================================

func (h *Handler) GetUpgrade(w http.ResponseWriter, r *http.Request) {
	id := generic.UpgradeID(chi.URLParam(r, "id"))
	var dto UpgradeDTO
	err := h.World.Do(func(s *world.State) error {
		c, u, err := s.FindUpgrade(id)
		if err != nil {
			return err
		}
		dto = toUpgradeDTO(c.ID, u)
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to get upgrade", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// PatchUpgrade routes each present field through its own setter. Each
// setter persists before the next one runs.
func (h *Handler) PatchUpgrade(w http.ResponseWriter, r *http.Request) {
	id := generic.UpgradeID(chi.URLParam(r, "id"))
	var req PatchUpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := generic.SettingsPatch{
		Level:         req.Level,
		LevelsToStore: req.LevelsToStore,
		LevelsToTake:  req.LevelsToTake,
	}
	if req.Direction != nil {
		d, err := generic.ParseDirection(*req.Direction)
		if err != nil {
			writeDomainError(w, "Invalid direction", err)
			return
		}
		patch.Direction = &d
	}

	var dto UpgradeDTO
	err := h.World.Do(func(s *world.State) error {
		c, u, err := s.FindUpgrade(id)
		if err != nil {
			return err
		}
		cu, ok := u.(generic.Configurable)
		if !ok {
			return fmt.Errorf("%w: settings on %s", generic.ErrUnsupportedAction, u.Kind())
		}
		if err := generic.ApplySettings(cu, patch); err != nil {
			return err
		}
		dto = toUpgradeDTO(c.ID, u)
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to update upgrade", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// PerformAction runs a manual transfer between the upgrade's container and
// a player. An Idempotency-Key header makes retries safe.
func (h *Handler) PerformAction(w http.ResponseWriter, r *http.Request) {
	id := generic.UpgradeID(chi.URLParam(r, "id"))
	action := generic.ManualAction(chi.URLParam(r, "action"))
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	key := r.Header.Get("Idempotency-Key")

	ctx := r.Context()
	resp := ActionResponse{Action: string(action)}
	err := h.World.Do(func(s *world.State) error {
		if key != "" {
			exists, err := h.Store.Exists(ctx, key)
			if err != nil {
				return fmt.Errorf("check idempotency key: %w", err)
			}
			if exists {
				return fmt.Errorf("%w: %s", generic.ErrDuplicateIdempotencyKey, key)
			}
		}
		c, u, err := s.FindUpgrade(id)
		if err != nil {
			return err
		}
		mt, ok := u.(generic.ManualTransfers)
		if !ok {
			return fmt.Errorf("%w: %s on %s", generic.ErrUnsupportedAction, action, u.Kind())
		}
		p, err := playerOf(s, generic.EntityID(req.PlayerID))
		if err != nil {
			return err
		}
		t, err := mt.Perform(action, p)
		if err != nil {
			return err
		}
		if !t.IsEmpty() {
			s.StampManual(&t, c.ID, key)
			if err := h.Ledger.Append(ctx, t); err != nil {
				return fmt.Errorf("record transfer: %w", err)
			}
			states := map[generic.ContainerID]map[string]generic.BufferState{c.ID: containerBufferStates(c)}
			if err := h.saveBuffers(ctx, states); err != nil {
				return err
			}
			dto := toTransferDTO(t)
			resp.Transfer = &dto
		}
		resp.Player = toPlayerDTO(p)
		return nil
	})
	if err != nil {
		writeDomainError(w, "Failed to perform action", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case generic.IsNotFound(err):
		status = http.StatusNotFound
	case generic.IsConflict(err):
		status = http.StatusConflict
	case generic.IsClientError(err):
		status = http.StatusBadRequest
	}
	writeError(w, status, message, err)
}

func vec3(a [3]float64) generic.Vec3 {
	return generic.Vec3{X: a[0], Y: a[1], Z: a[2]}
}
