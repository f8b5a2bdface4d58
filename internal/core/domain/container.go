package domain

import (
	"sort"
	"strings"
)

// Container is the cached view of one engine container: the entry from the
// list endpoint merged with the authoritative detail document.
type Container struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	State  map[string]any `json:"state"`  // Running, Paused, ExitCode, ...
	Config map[string]any `json:"config"` // Image, Cmd, Env, Tty, ...
	Fields map[string]any `json:"fields"` // every merged top-level field
}

// NewContainer builds a Container from a list entry and a detail document.
// Detail fields override list fields of the same name; State and Config
// are always non-nil.
func NewContainer(id string, list, detail map[string]any) Container {
	fields := Merge(list, detail)

	state, _ := fields["State"].(map[string]any)
	if state == nil {
		state = map[string]any{}
	}
	config, _ := fields["Config"].(map[string]any)
	if config == nil {
		config = map[string]any{}
	}

	return Container{
		ID:     id,
		Name:   NameOf(fields),
		State:  state,
		Config: config,
		Fields: fields,
	}
}

// Merge layers detail over list, key by key, into a new map. The list
// endpoint reports State as a plain string while the detail endpoint
// reports an object; detail always wins such collisions.
func Merge(list, detail map[string]any) map[string]any {
	merged := make(map[string]any, len(list)+len(detail))
	for key, value := range list {
		merged[key] = value
	}
	for key, value := range detail {
		merged[key] = value
	}
	return merged
}

// NameOf derives the container name: the detail "Name" field or the first
// list "Names" entry, without the leading slash. Empty if neither exists.
func NameOf(fields map[string]any) string {
	if name, ok := fields["Name"].(string); ok && name != "" {
		return strings.TrimPrefix(name, "/")
	}
	if names, ok := fields["Names"].([]any); ok && len(names) > 0 {
		if name, ok := names[0].(string); ok {
			return strings.TrimPrefix(name, "/")
		}
	}
	return ""
}

// Running reports State.Running.
func (c Container) Running() bool {
	running, _ := c.State["Running"].(bool)
	return running
}

// Paused reports State.Paused.
func (c Container) Paused() bool {
	paused, _ := c.State["Paused"].(bool)
	return paused
}

// ExitCode returns State.ExitCode, zero if absent.
func (c Container) ExitCode() int {
	code, _ := c.State["ExitCode"].(float64)
	return int(code)
}

// Image returns Config.Image.
func (c Container) Image() string {
	image, _ := c.Config["Image"].(string)
	return image
}

// Command returns Config.Cmd as a word list.
func (c Container) Command() []string {
	raw, _ := c.Config["Cmd"].([]any)
	words := make([]string, 0, len(raw))
	for _, word := range raw {
		if s, ok := word.(string); ok {
			words = append(words, s)
		}
	}
	return words
}

// TTY reports whether the container was created with a terminal, which
// decides how its attach and log streams are framed.
func (c Container) TTY() bool {
	tty, _ := c.Config["Tty"].(bool)
	return tty
}

// IPAddress returns the primary address from NetworkSettings, falling
// back to the first network that has one.
func (c Container) IPAddress() string {
	settings, _ := c.Fields["NetworkSettings"].(map[string]any)
	if settings == nil {
		return ""
	}
	if ip, _ := settings["IPAddress"].(string); ip != "" {
		return ip
	}
	networks, _ := settings["Networks"].(map[string]any)
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		network, _ := networks[name].(map[string]any)
		if ip, _ := network["IPAddress"].(string); ip != "" {
			return ip
		}
	}
	return ""
}

// Snapshot maps container id to Container. A published Snapshot is never
// modified; updates replace it wholesale.
type Snapshot map[string]Container

// Sorted returns the containers ordered by name, then id.
func (s Snapshot) Sorted() []Container {
	list := make([]Container, 0, len(s))
	for _, c := range s {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Summary is one entry of the container list endpoint.
type Summary struct {
	ID     string
	Fields map[string]any
}
