package model

import (
	"sort"
	"strings"
)

type Division struct {
	Name        string   `json:"name" yaml:"name"`
	Code        string   `json:"code" yaml:"code"`
	Color       string   `json:"color,omitempty" yaml:"color"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Priority    int      `json:"priority" yaml:"priority"`
	Members     []string `json:"members" yaml:"members"`
}

// Roster is the ordered set of canonical employee names. It is a value: the
// engine never mutates one, configuration reloads replace it.
type Roster struct {
	names     []string
	index     map[string]int
	division  map[string]string
	divisions []Division
}

// NewRoster orders members by division priority and keeps the first
// occurrence of a name that appears in several divisions.
func NewRoster(divisions []Division) Roster {
	sorted := make([]Division, len(divisions))
	copy(sorted, divisions)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	r := Roster{
		index:     make(map[string]int),
		division:  make(map[string]string),
		divisions: sorted,
	}
	for _, div := range sorted {
		for _, member := range div.Members {
			name := strings.TrimSpace(member)
			if name == "" {
				continue
			}
			if _, ok := r.index[name]; ok {
				continue
			}
			r.index[name] = len(r.names)
			r.names = append(r.names, name)
			r.division[name] = div.Name
		}
	}
	return r
}

// RosterOf builds a roster without divisions.
func RosterOf(names ...string) Roster {
	return NewRoster([]Division{{Name: "", Members: names}})
}

func (r Roster) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

func (r Roster) Len() int { return len(r.names) }

func (r Roster) Contains(name string) bool {
	_, ok := r.index[name]
	return ok
}

func (r Roster) DivisionOf(name string) string {
	return r.division[name]
}

func (r Roster) Divisions() []Division {
	out := make([]Division, 0, len(r.divisions))
	for _, d := range r.divisions {
		if d.Name == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}
