/*
Package snapshot saves and restores whole worlds.

FORMAT:
  zstd( header-json "\n" body-json )

  The header line lets tools read version and tick without decoding the
  body. The body carries players, mobs, reservoirs and every container
  with its buffers and upgrade records.

COOLDOWNS:
  Gates are not saved. Import opens every gate, matching a world load.

SEE ALSO:
  - factory/upgrade.go: Upgrade records are rebuilt through the factory
  - api/scheduler.go: Periodic snapshots from the tick driver
*/
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/warp/upgrade-engine/factory"
	"github.com/warp/upgrade-engine/generic"
	"github.com/warp/upgrade-engine/world"
	"github.com/warp/upgrade-engine/xp"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Players    []PlayerV1    `json:"players"`
	Mobs       []MobV1       `json:"mobs"`
	Containers []ContainerV1 `json:"containers"`
	Reservoirs []ReservoirV1 `json:"reservoirs"`
}

type PlayerV1 struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Pos         [3]float64 `json:"pos"`
	TotalPoints int64      `json:"total_points"`
}

type MobV1 struct {
	ID  string     `json:"id"`
	Pos [3]float64 `json:"pos"`
}

type BufferV1 struct {
	Tag        string `json:"tag"`
	ResourceID string `json:"resource_id,omitempty"`
	Stored     int64  `json:"stored"`
	Capacity   int64  `json:"capacity"`
}

type ContainerV1 struct {
	ID       string                `json:"id"`
	Pos      [3]int                `json:"pos"`
	Holder   string                `json:"holder,omitempty"`
	Buffers  []BufferV1            `json:"buffers"`
	Upgrades []factory.UpgradeJSON `json:"upgrades"`
}

type ReservoirV1 struct {
	Pos    [3]int   `json:"pos"`
	Buffer BufferV1 `json:"buffer"`
}

// =============================================================================
// ENCODING
// =============================================================================

func Encode(w io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func Decode(r io.Reader) (SnapshotV1, error) {
	var snap SnapshotV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("json decode: %w", err)
	}
	return snap, nil
}

// WriteSnapshot encodes into a temp file next to path and renames it over
// path, so readers never see a partial snapshot.
func WriteSnapshot(path string, snap SnapshotV1) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := Encode(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SnapshotV1{}, err
	}
	defer f.Close()
	return Decode(f)
}

// =============================================================================
// EXPORT / IMPORT
// =============================================================================

// Export captures s. Call it inside World.Do.
func Export(s *world.State, f *factory.UpgradeFactory, worldID string) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{Version: Version, WorldID: worldID, Tick: uint64(s.CurrentTick())},
	}
	for _, e := range s.Entities() {
		switch v := e.(type) {
		case *xp.Player:
			snap.Players = append(snap.Players, PlayerV1{
				ID: string(v.ID), Name: v.Name, Pos: vec(v.Pos), TotalPoints: v.TotalPoints(),
			})
		case *world.Mob:
			snap.Mobs = append(snap.Mobs, MobV1{ID: string(v.ID), Pos: vec(v.Pos)})
		}
	}
	for _, c := range s.Containers() {
		cv := ContainerV1{ID: string(c.ID), Pos: block(c.Pos)}
		if h := c.Holder(); h != nil {
			cv.Holder = string(h.EntityID())
		}
		for _, tag := range c.BufferTags() {
			b, _ := c.Buffer(tag).Get()
			cv.Buffers = append(cv.Buffers, bufferV1(tag, b.State()))
		}
		for _, u := range c.Upgrades() {
			cv.Upgrades = append(cv.Upgrades, f.Encode(c.ID, u))
		}
		snap.Containers = append(snap.Containers, cv)
	}
	for _, r := range s.Reservoirs() {
		snap.Reservoirs = append(snap.Reservoirs, ReservoirV1{Pos: block(r.Pos), Buffer: bufferV1("", r.Buffer.State())})
	}
	return snap
}

// Import rebuilds a state. Every gate starts open.
func Import(snap SnapshotV1, f *factory.UpgradeFactory) (*world.State, error) {
	s := world.NewState()
	s.SetTick(generic.Tick(snap.Header.Tick))

	for _, p := range snap.Players {
		pl := xp.NewPlayer(generic.EntityID(p.ID), p.Name, unvec(p.Pos))
		pl.SetTotalPoints(p.TotalPoints)
		s.AddEntity(pl)
	}
	for _, m := range snap.Mobs {
		s.AddEntity(&world.Mob{ID: generic.EntityID(m.ID), Pos: unvec(m.Pos)})
	}
	for _, cv := range snap.Containers {
		c := generic.NewContainer(generic.ContainerID(cv.ID), unblock(cv.Pos))
		for _, b := range cv.Buffers {
			c.PutBuffer(b.Tag, generic.RestoreBuffer(b.state()))
		}
		if cv.Holder != "" {
			h, err := s.Entity(generic.EntityID(cv.Holder))
			if err != nil {
				return nil, fmt.Errorf("container %s holder: %w", cv.ID, err)
			}
			c.SetHolder(h)
		}
		for _, uj := range cv.Upgrades {
			if _, err := f.Restore(c, generic.UpgradeRecord{
				ID:     generic.UpgradeID(uj.ID),
				Kind:   generic.UpgradeKind(uj.Kind),
				Fields: uj.Settings,
			}); err != nil {
				return nil, fmt.Errorf("container %s: %w", cv.ID, err)
			}
		}
		s.AddContainer(c)
	}
	for _, r := range snap.Reservoirs {
		s.AddReservoir(unblock(r.Pos), generic.RestoreBuffer(r.Buffer.state()))
	}
	s.ResetCooldowns()
	return s, nil
}

func bufferV1(tag string, st generic.BufferState) BufferV1 {
	return BufferV1{Tag: tag, ResourceID: st.ResourceID, Stored: st.Stored, Capacity: st.Capacity}
}

func (b BufferV1) state() generic.BufferState {
	return generic.BufferState{ResourceID: b.ResourceID, Stored: b.Stored, Capacity: b.Capacity}
}

func vec(v generic.Vec3) [3]float64     { return [3]float64{v.X, v.Y, v.Z} }
func unvec(a [3]float64) generic.Vec3   { return generic.Vec3{X: a[0], Y: a[1], Z: a[2]} }
func block(p generic.BlockPos) [3]int   { return [3]int{p.X, p.Y, p.Z} }
func unblock(a [3]int) generic.BlockPos { return generic.BlockPos{X: a[0], Y: a[1], Z: a[2]} }
