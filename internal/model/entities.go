package model

import "time"

// DateLayout is the natural key format of entries.
const DateLayout = "2006-01-02"

// Entity is implemented by every node of the graph.
type Entity interface {
	EntityID() int64
	// Key returns the natural key: a title, name or date.
	Key() string
}

// Entry is one dated journal entry.
type Entry struct {
	ID          int64
	Date        time.Time
	WordCount   int
	Summary     string
	PersonIDs   []int64
	LocationIDs []int64
	TagIDs      []int64
	ThemeIDs    []int64
	ArcIDs      []int64
}

func (e *Entry) EntityID() int64 { return e.ID }
func (e *Entry) Key() string     { return e.Date.Format(DateLayout) }

// Person is someone who appears in entries.
type Person struct {
	ID       int64
	Name     string
	FullName string
	Relation string
}

func (p *Person) EntityID() int64 { return p.ID }
func (p *Person) Key() string     { return p.Name }

// IsSelf reports whether the person is the narrator.
func (p *Person) IsSelf() bool { return p.Relation == RelationSelf }

type City struct {
	ID      int64
	Name    string
	Country string
}

func (c *City) EntityID() int64 { return c.ID }
func (c *City) Key() string     { return c.Name }

// Location is a place owned by exactly one city.
type Location struct {
	ID     int64
	Name   string
	CityID int64
}

func (l *Location) EntityID() int64 { return l.ID }
func (l *Location) Key() string     { return l.Name }

type Tag struct {
	ID   int64
	Name string
}

func (t *Tag) EntityID() int64 { return t.ID }
func (t *Tag) Key() string     { return t.Name }

type Theme struct {
	ID   int64
	Name string
}

func (t *Theme) EntityID() int64 { return t.ID }
func (t *Theme) Key() string     { return t.Name }

// Arc is a narrative thread grouping entries.
type Arc struct {
	ID          int64
	Name        string
	Description string
}

func (a *Arc) EntityID() int64 { return a.ID }
func (a *Arc) Key() string     { return a.Name }

// Chapter is a manuscript chapter.
type Chapter struct {
	ID           int64
	Title        string
	Number       int
	Type         string
	Status       string
	Part         string
	CharacterIDs []int64
	References   []Reference
}

func (c *Chapter) EntityID() int64 { return c.ID }
func (c *Chapter) Key() string     { return c.Title }

// Reference ties a chapter to a source entry.
type Reference struct {
	EntryID int64
	Mode    string
	Quote   string
}

// Character is a manuscript character, possibly based on real people.
type Character struct {
	ID          int64
	Name        string
	Role        string
	Description string
	BasedOn     []Portrayal
}

func (c *Character) EntityID() int64 { return c.ID }
func (c *Character) Key() string     { return c.Name }

// Portrayal records how much a person contributes to a character.
type Portrayal struct {
	PersonID     int64
	Contribution string
}

// Scene is a manuscript scene, owned by at most one chapter.
type Scene struct {
	ID          int64
	Name        string
	ChapterID   int64
	Origin      string
	Description string
	SourceIDs   []int64
}

func (s *Scene) EntityID() int64 { return s.ID }
func (s *Scene) Key() string     { return s.Name }
