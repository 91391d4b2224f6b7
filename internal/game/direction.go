package game

import "strings"

// Direction is one of the twelve ways out of a room.
type Direction string

const (
	North     Direction = "north"
	Northeast Direction = "northeast"
	East      Direction = "east"
	Southeast Direction = "southeast"
	South     Direction = "south"
	Southwest Direction = "southwest"
	West      Direction = "west"
	Northwest Direction = "northwest"
	Up        Direction = "up"
	Down      Direction = "down"
	In        Direction = "in"
	Out       Direction = "out"
)

var directionAliases = map[string]Direction{
	"n":         North,
	"north":     North,
	"ne":        Northeast,
	"northeast": Northeast,
	"e":         East,
	"east":      East,
	"se":        Southeast,
	"southeast": Southeast,
	"s":         South,
	"south":     South,
	"sw":        Southwest,
	"southwest": Southwest,
	"w":         West,
	"west":      West,
	"nw":        Northwest,
	"northwest": Northwest,
	"u":         Up,
	"up":        Up,
	"d":         Down,
	"down":      Down,
	"in":        In,
	"enter":     In,
	"out":       Out,
	"exit":      Out,
}

// ParseDirection accepts a direction name or shorthand in any case.
func ParseDirection(s string) (Direction, bool) {
	d, ok := directionAliases[strings.ToLower(strings.TrimSpace(s))]
	return d, ok
}

// Valid reports whether d is one of the canonical directions.
func (d Direction) Valid() bool {
	switch d {
	case North, Northeast, East, Southeast, South, Southwest, West, Northwest, Up, Down, In, Out:
		return true
	}
	return false
}

// DirectionShorthands lists the aliases that double as movement verbs.
func DirectionShorthands() []string {
	return []string{
		"n", "north", "ne", "northeast", "e", "east", "se", "southeast",
		"s", "south", "sw", "southwest", "w", "west", "nw", "northwest",
		"u", "up", "d", "down", "in", "out",
	}
}
