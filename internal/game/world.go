package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultWorldPath is the on-disk location of the world file.
const DefaultWorldPath = "data/world.json"

type RoomID string

var (
	// ErrRoomNotFound indicates a room reference that does not resolve.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNoExit indicates there is no exit in the requested direction.
	ErrNoExit = errors.New("no exit in that direction")
)

type Room struct {
	ID          RoomID               `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Exits       map[Direction]RoomID `json:"exits,omitempty"`
	Objects     []string             `json:"objects,omitempty"`
}

// Object is anything that can sit in a room. Its class decides how it is
// presented and is resolved once when the world is loaded.
type Object struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Class       string   `json:"class"`
	Contents    []string `json:"contents,omitempty"`

	class Class
}

type worldFile struct {
	Start   RoomID    `json:"start"`
	Rooms   []*Room   `json:"rooms"`
	Objects []*Object `json:"objects,omitempty"`
}

// World holds the room graph and its objects. It is not safe for concurrent
// use; exactly one goroutine owns it.
type World struct {
	path    string
	start   RoomID
	rooms   map[RoomID]*Room
	objects map[string]*Object
}

// LoadWorld reads the world file at path. A missing file yields the built-in
// world, which is written to path on the next Save. A file that cannot be
// decoded is an error.
func LoadWorld(path string) (*World, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		w := DefaultWorld()
		w.path = path
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}
	var file worldFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode world file: %w", err)
	}
	w, err := NewWorld(file.Start, file.Rooms, file.Objects)
	if err != nil {
		return nil, fmt.Errorf("world file %s: %w", path, err)
	}
	w.path = path
	return w, nil
}

// NewWorld validates the room graph and binds every object to its class.
func NewWorld(start RoomID, rooms []*Room, objects []*Object) (*World, error) {
	w := &World{
		start:   start,
		rooms:   make(map[RoomID]*Room, len(rooms)),
		objects: make(map[string]*Object, len(objects)),
	}
	for _, r := range rooms {
		if r == nil || r.ID == "" {
			return nil, fmt.Errorf("room without id")
		}
		if _, dup := w.rooms[r.ID]; dup {
			return nil, fmt.Errorf("duplicate room %q", r.ID)
		}
		w.rooms[r.ID] = r
	}
	if _, ok := w.rooms[start]; !ok {
		return nil, fmt.Errorf("start room %q: %w", start, ErrRoomNotFound)
	}
	for _, r := range w.rooms {
		for dir, target := range r.Exits {
			if !dir.Valid() {
				return nil, fmt.Errorf("room %q: unknown direction %q", r.ID, dir)
			}
			if _, ok := w.rooms[target]; !ok {
				return nil, fmt.Errorf("room %q exit %s to %q: %w", r.ID, dir, target, ErrRoomNotFound)
			}
		}
	}
	for _, o := range objects {
		if o == nil || o.ID == "" {
			return nil, fmt.Errorf("object without id")
		}
		class, ok := LookupClass(o.Class)
		if !ok {
			return nil, fmt.Errorf("object %q: unknown class %q", o.ID, o.Class)
		}
		o.class = class
		w.objects[o.ID] = o
	}
	for _, r := range w.rooms {
		for _, id := range r.Objects {
			if _, ok := w.objects[id]; !ok {
				return nil, fmt.Errorf("room %q: unknown object %q", r.ID, id)
			}
		}
	}
	return w, nil
}

// Start returns the room new accounts begin in.
func (w *World) Start() RoomID {
	return w.start
}

// Room looks up a room by id.
func (w *World) Room(id RoomID) (*Room, bool) {
	r, ok := w.rooms[id]
	return r, ok
}

// Object looks up an object by id.
func (w *World) Object(id string) (*Object, bool) {
	o, ok := w.objects[id]
	return o, ok
}

// Exit resolves the room reached from room by walking in dir.
func (w *World) Exit(room RoomID, dir Direction) (RoomID, error) {
	r, ok := w.rooms[room]
	if !ok {
		return "", ErrRoomNotFound
	}
	target, ok := r.Exits[dir]
	if !ok {
		return "", ErrNoExit
	}
	return target, nil
}

// Describe renders the room description with its visible objects and exits.
func (w *World) Describe(id RoomID) (string, error) {
	r, ok := w.rooms[id]
	if !ok {
		return "", ErrRoomNotFound
	}
	var b strings.Builder
	b.WriteString(r.Description)
	var seen []string
	for _, oid := range r.Objects {
		o := w.objects[oid]
		if line := o.class.Describe(w, o); line != "" {
			seen = append(seen, line)
		}
	}
	if len(seen) > 0 {
		b.WriteString("\nYou notice: ")
		b.WriteString(strings.Join(seen, ", "))
	}
	b.WriteString("\nExits: ")
	b.WriteString(ExitList(r))
	return b.String(), nil
}

// ExitList renders the exits for a room in a deterministic order.
func ExitList(r *Room) string {
	if len(r.Exits) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(r.Exits))
	for k := range r.Exits {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return strings.Join(keys, " ")
}

// Save writes the world to its file using a temp file and rename.
func (w *World) Save() error {
	if w.path == "" {
		return nil
	}
	file := worldFile{Start: w.start}
	ids := make([]string, 0, len(w.rooms))
	for id := range w.rooms {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		file.Rooms = append(file.Rooms, w.rooms[RoomID(id)])
	}
	oids := make([]string, 0, len(w.objects))
	for id := range w.objects {
		oids = append(oids, id)
	}
	sort.Strings(oids)
	for _, id := range oids {
		file.Objects = append(file.Objects, w.objects[id])
	}
	return writeJSONFile(w.path, "world-*.tmp", file)
}

func writeJSONFile(path, pattern string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// DefaultWorld is the small world used when no world file exists yet.
func DefaultWorld() *World {
	rooms := []*Room{
		{
			ID:          "square",
			Name:        "Village Square",
			Description: "Cobblestones ring a dry fountain. Lanes wander off in every direction.",
			Exits: map[Direction]RoomID{
				North: "hall",
				East:  "market",
				In:    "inn",
			},
			Objects: []string{"fountain", "noticeboard"},
		},
		{
			ID:          "hall",
			Name:        "Moot Hall",
			Description: "Long benches face a raised dais under smoke-dark rafters.",
			Exits: map[Direction]RoomID{
				South: "square",
				Up:    "loft",
			},
		},
		{
			ID:          "loft",
			Name:        "Dusty Loft",
			Description: "Crates and sacks are stacked beneath a sagging roof.",
			Exits: map[Direction]RoomID{
				Down: "hall",
			},
			Objects: []string{"crate"},
		},
		{
			ID:          "market",
			Name:        "Market Row",
			Description: "Shuttered stalls line a narrow street that smells of old fish.",
			Exits: map[Direction]RoomID{
				West:      "square",
				Southeast: "gate",
			},
			Objects: []string{"lantern"},
		},
		{
			ID:          "gate",
			Name:        "East Gate",
			Description: "A heavy gate stands barred against the marshes beyond.",
			Exits: map[Direction]RoomID{
				Northwest: "market",
			},
		},
		{
			ID:          "inn",
			Name:        "The Hollow Inn",
			Description: "A low fire crackles in the hearth of a quiet common room.",
			Exits: map[Direction]RoomID{
				Out: "square",
			},
		},
	}
	objects := []*Object{
		{ID: "fountain", Name: "dry fountain", Class: ClassScenery},
		{ID: "noticeboard", Name: "notice board", Description: "Curling notices flap in the wind.", Class: ClassItem},
		{ID: "crate", Name: "wooden crate", Class: ClassContainer, Contents: []string{"rope"}},
		{ID: "rope", Name: "coil of rope", Class: ClassItem},
		{ID: "lantern", Name: "brass lantern", Class: ClassItem},
	}
	w, err := NewWorld("square", rooms, objects)
	if err != nil {
		panic(fmt.Sprintf("game: default world is invalid: %v", err))
	}
	return w
}
