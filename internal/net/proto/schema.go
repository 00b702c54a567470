package proto

import (
	"github.com/invopop/jsonschema"
)

// Schema describes every event payload, keyed by event name.
func Schema() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}
	describe := func(v any, title, description string) *jsonschema.Schema {
		s := reflector.Reflect(v)
		s.Title = title
		s.Description = description
		return s
	}
	return map[string]*jsonschema.Schema{
		EventPlayers:     describe([]string{}, "players", "Usernames of every connected session."),
		EventDebug:       describe([]string{}, "debug", "Diagnostic lines for the receiving session."),
		EventUpdateWorld: describe(terrainShape{}, "updateWorld", "Static terrain of the joined world."),
		EventReset:       describe(ResetFrame{}, "reset", "Full state of the session's world."),
		EventUpdate:      describe(UpdateFrame{}, "update", "Entities changed since the previous frame."),
		EventRename:      describe("", "rename", "Requested username."),
		EventInput:       describe(InputMessage{}, "input", "Held or released transition for one control."),
	}
}

// terrainShape mirrors world.Terrain without importing it.
type terrainShape struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	TileSize float64 `json:"tileSize"`
	Tiles    [][]int `json:"tiles"`
}
