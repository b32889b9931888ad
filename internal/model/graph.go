package model

import (
	"sort"
	"strings"
)

// Graph is an in-memory snapshot of the relational store. Slices are sorted
// by natural key (entries by date) once in Index; callers must not reorder them.
type Graph struct {
	Entries    []*Entry
	People     []*Person
	Locations  []*Location
	Cities     []*City
	Tags       []*Tag
	Themes     []*Theme
	Arcs       []*Arc
	Chapters   []*Chapter
	Characters []*Character
	Scenes     []*Scene

	entries    map[int64]*Entry
	people     map[int64]*Person
	locations  map[int64]*Location
	cities     map[int64]*City
	tags       map[int64]*Tag
	themes     map[int64]*Theme
	arcs       map[int64]*Arc
	chapters   map[int64]*Chapter
	characters map[int64]*Character
	scenes     map[int64]*Scene
}

func byKey[T Entity](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := strings.ToLower(items[i].Key()), strings.ToLower(items[j].Key())
		if ki != kj {
			return ki < kj
		}
		return items[i].EntityID() < items[j].EntityID()
	})
}

func indexByID[T Entity](items []T) map[int64]T {
	m := make(map[int64]T, len(items))
	for _, it := range items {
		m[it.EntityID()] = it
	}
	return m
}

// Index sorts every collection and builds the id maps. It must be called
// after the slices are populated and before any lookup.
func (g *Graph) Index() {
	sort.SliceStable(g.Entries, func(i, j int) bool {
		if !g.Entries[i].Date.Equal(g.Entries[j].Date) {
			return g.Entries[i].Date.Before(g.Entries[j].Date)
		}
		return g.Entries[i].ID < g.Entries[j].ID
	})
	byKey(g.People)
	byKey(g.Locations)
	byKey(g.Cities)
	byKey(g.Tags)
	byKey(g.Themes)
	byKey(g.Arcs)
	sort.SliceStable(g.Chapters, func(i, j int) bool {
		a, b := g.Chapters[i], g.Chapters[j]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
	byKey(g.Characters)
	byKey(g.Scenes)

	g.entries = indexByID(g.Entries)
	g.people = indexByID(g.People)
	g.locations = indexByID(g.Locations)
	g.cities = indexByID(g.Cities)
	g.tags = indexByID(g.Tags)
	g.themes = indexByID(g.Themes)
	g.arcs = indexByID(g.Arcs)
	g.chapters = indexByID(g.Chapters)
	g.characters = indexByID(g.Characters)
	g.scenes = indexByID(g.Scenes)
}

func (g *Graph) Entry(id int64) *Entry         { return g.entries[id] }
func (g *Graph) Person(id int64) *Person       { return g.people[id] }
func (g *Graph) Location(id int64) *Location   { return g.locations[id] }
func (g *Graph) City(id int64) *City           { return g.cities[id] }
func (g *Graph) Tag(id int64) *Tag             { return g.tags[id] }
func (g *Graph) Theme(id int64) *Theme         { return g.themes[id] }
func (g *Graph) Arc(id int64) *Arc             { return g.arcs[id] }
func (g *Graph) Chapter(id int64) *Chapter     { return g.chapters[id] }
func (g *Graph) Character(id int64) *Character { return g.characters[id] }
func (g *Graph) Scene(id int64) *Scene         { return g.scenes[id] }

// Entities returns the sorted members of a family as the common interface.
func (g *Graph) Entities(f Family) []Entity {
	switch f {
	case FamilyEntry:
		return asEntities(g.Entries)
	case FamilyPerson:
		return asEntities(g.People)
	case FamilyLocation:
		return asEntities(g.Locations)
	case FamilyCity:
		return asEntities(g.Cities)
	case FamilyTag:
		return asEntities(g.Tags)
	case FamilyTheme:
		return asEntities(g.Themes)
	case FamilyArc:
		return asEntities(g.Arcs)
	case FamilyChapter:
		return asEntities(g.Chapters)
	case FamilyCharacter:
		return asEntities(g.Characters)
	case FamilyScene:
		return asEntities(g.Scenes)
	}
	return nil
}

func asEntities[T Entity](items []T) []Entity {
	out := make([]Entity, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

// ScenesOf returns the scenes owned by a chapter, in name order.
func (g *Graph) ScenesOf(chapterID int64) []*Scene {
	var out []*Scene
	for _, s := range g.Scenes {
		if s.ChapterID == chapterID {
			out = append(out, s)
		}
	}
	return out
}

// LocationsIn returns the locations owned by a city, in name order.
func (g *Graph) LocationsIn(cityID int64) []*Location {
	var out []*Location
	for _, l := range g.Locations {
		if l.CityID == cityID {
			out = append(out, l)
		}
	}
	return out
}

// ChaptersWith returns the chapters a character appears in, in chapter order.
func (g *Graph) ChaptersWith(characterID int64) []*Chapter {
	var out []*Chapter
	for _, c := range g.Chapters {
		for _, id := range c.CharacterIDs {
			if id == characterID {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// EntriesLinking returns the entries for which has reports true, in date order.
func (g *Graph) EntriesLinking(has func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range g.Entries {
		if has(e) {
			out = append(out, e)
		}
	}
	return out
}

// ContainsID reports whether id is in ids.
func ContainsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
