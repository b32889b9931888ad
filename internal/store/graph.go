package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/soffiafdz/palimpsest-sub000/internal/model"
)

// LoadGraph reads the whole entity graph into memory and indexes it.
func (db *DB) LoadGraph(ctx context.Context) (*model.Graph, error) {
	g := &model.Graph{}
	loaders := []func(context.Context, *model.Graph) error{
		db.loadEntries, db.loadPeople, db.loadPlaces, db.loadTerms,
		db.loadArcs, db.loadChapters, db.loadCharacters, db.loadScenes,
	}
	for _, load := range loaders {
		if err := load(ctx, g); err != nil {
			return nil, err
		}
	}
	g.Index()
	return g, nil
}

// scanRows runs q and calls scan for every row.
func (db *DB) scanRows(ctx context.Context, q string, scan func(*sql.Rows) error) error {
	rows, err := db.conn.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return fmt.Errorf("store: scan: %w", err)
		}
	}
	return rows.Err()
}

// pairs loads (owner, target) id pairs of a link table keyed by owner.
func (db *DB) pairs(ctx context.Context, rel Relation) (map[int64][]int64, error) {
	rt := relations[rel]
	out := make(map[int64][]int64)
	q := fmt.Sprintf(`SELECT %s, %s FROM %s ORDER BY %s, %s`, rt.ownerCol, rt.targetCol, rt.table, rt.ownerCol, rt.targetCol)
	err := db.scanRows(ctx, q, func(rows *sql.Rows) error {
		var owner, target int64
		if err := rows.Scan(&owner, &target); err != nil {
			return err
		}
		out[owner] = append(out[owner], target)
		return nil
	})
	return out, err
}

func (db *DB) loadEntries(ctx context.Context, g *model.Graph) error {
	err := db.scanRows(ctx, `SELECT id, date, word_count, summary FROM entries`, func(rows *sql.Rows) error {
		var e model.Entry
		var date string
		if err := rows.Scan(&e.ID, &date, &e.WordCount, &e.Summary); err != nil {
			return err
		}
		d, err := time.Parse(model.DateLayout, date)
		if err != nil {
			return fmt.Errorf("entry %d: bad date %q: %w", e.ID, date, err)
		}
		e.Date = d
		g.Entries = append(g.Entries, &e)
		return nil
	})
	if err != nil {
		return err
	}

	links := []struct {
		rel Relation
		set func(*model.Entry, []int64)
	}{
		{RelEntryPeople, func(e *model.Entry, ids []int64) { e.PersonIDs = ids }},
		{RelEntryLocations, func(e *model.Entry, ids []int64) { e.LocationIDs = ids }},
		{RelEntryTags, func(e *model.Entry, ids []int64) { e.TagIDs = ids }},
		{RelEntryThemes, func(e *model.Entry, ids []int64) { e.ThemeIDs = ids }},
		{RelEntryArcs, func(e *model.Entry, ids []int64) { e.ArcIDs = ids }},
	}
	for _, l := range links {
		m, err := db.pairs(ctx, l.rel)
		if err != nil {
			return err
		}
		for _, e := range g.Entries {
			l.set(e, m[e.ID])
		}
	}
	return nil
}

func (db *DB) loadPeople(ctx context.Context, g *model.Graph) error {
	return db.scanRows(ctx, `SELECT id, name, full_name, relation FROM people`, func(rows *sql.Rows) error {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.FullName, &p.Relation); err != nil {
			return err
		}
		g.People = append(g.People, &p)
		return nil
	})
}

func (db *DB) loadPlaces(ctx context.Context, g *model.Graph) error {
	err := db.scanRows(ctx, `SELECT id, name, country FROM cities`, func(rows *sql.Rows) error {
		var c model.City
		if err := rows.Scan(&c.ID, &c.Name, &c.Country); err != nil {
			return err
		}
		g.Cities = append(g.Cities, &c)
		return nil
	})
	if err != nil {
		return err
	}
	return db.scanRows(ctx, `SELECT id, name, city_id FROM locations`, func(rows *sql.Rows) error {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.CityID); err != nil {
			return err
		}
		g.Locations = append(g.Locations, &l)
		return nil
	})
}

func (db *DB) loadTerms(ctx context.Context, g *model.Graph) error {
	err := db.scanRows(ctx, `SELECT id, name FROM tags`, func(rows *sql.Rows) error {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return err
		}
		g.Tags = append(g.Tags, &t)
		return nil
	})
	if err != nil {
		return err
	}
	return db.scanRows(ctx, `SELECT id, name FROM themes`, func(rows *sql.Rows) error {
		var t model.Theme
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return err
		}
		g.Themes = append(g.Themes, &t)
		return nil
	})
}

func (db *DB) loadArcs(ctx context.Context, g *model.Graph) error {
	return db.scanRows(ctx, `SELECT id, name, description FROM arcs`, func(rows *sql.Rows) error {
		var a model.Arc
		if err := rows.Scan(&a.ID, &a.Name, &a.Description); err != nil {
			return err
		}
		g.Arcs = append(g.Arcs, &a)
		return nil
	})
}

func (db *DB) loadChapters(ctx context.Context, g *model.Graph) error {
	byID := make(map[int64]*model.Chapter)
	err := db.scanRows(ctx, `SELECT id, title, number, type, status, part FROM chapters`, func(rows *sql.Rows) error {
		var c model.Chapter
		if err := rows.Scan(&c.ID, &c.Title, &c.Number, &c.Type, &c.Status, &c.Part); err != nil {
			return err
		}
		g.Chapters = append(g.Chapters, &c)
		byID[c.ID] = &c
		return nil
	})
	if err != nil {
		return err
	}

	chars, err := db.pairs(ctx, RelChapterCharacters)
	if err != nil {
		return err
	}
	for id, c := range byID {
		c.CharacterIDs = chars[id]
	}

	return db.scanRows(ctx, `SELECT chapter_id, entry_id, mode, quote FROM chapter_references ORDER BY chapter_id, entry_id, mode, quote`, func(rows *sql.Rows) error {
		var chapterID int64
		var r model.Reference
		if err := rows.Scan(&chapterID, &r.EntryID, &r.Mode, &r.Quote); err != nil {
			return err
		}
		if c, ok := byID[chapterID]; ok {
			c.References = append(c.References, r)
		}
		return nil
	})
}

func (db *DB) loadCharacters(ctx context.Context, g *model.Graph) error {
	byID := make(map[int64]*model.Character)
	err := db.scanRows(ctx, `SELECT id, name, role, description FROM characters`, func(rows *sql.Rows) error {
		var c model.Character
		if err := rows.Scan(&c.ID, &c.Name, &c.Role, &c.Description); err != nil {
			return err
		}
		g.Characters = append(g.Characters, &c)
		byID[c.ID] = &c
		return nil
	})
	if err != nil {
		return err
	}
	return db.scanRows(ctx, `SELECT character_id, person_id, contribution FROM character_people ORDER BY character_id, person_id`, func(rows *sql.Rows) error {
		var characterID int64
		var p model.Portrayal
		if err := rows.Scan(&characterID, &p.PersonID, &p.Contribution); err != nil {
			return err
		}
		if c, ok := byID[characterID]; ok {
			c.BasedOn = append(c.BasedOn, p)
		}
		return nil
	})
}

func (db *DB) loadScenes(ctx context.Context, g *model.Graph) error {
	err := db.scanRows(ctx, `SELECT id, name, chapter_id, origin, description FROM scenes`, func(rows *sql.Rows) error {
		var s model.Scene
		var chapterID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.Name, &chapterID, &s.Origin, &s.Description); err != nil {
			return err
		}
		s.ChapterID = chapterID.Int64
		g.Scenes = append(g.Scenes, &s)
		return nil
	})
	if err != nil {
		return err
	}
	sources, err := db.pairs(ctx, RelSceneSources)
	if err != nil {
		return err
	}
	for _, s := range g.Scenes {
		s.SourceIDs = sources[s.ID]
	}
	return nil
}

// Keys returns the lowercased natural keys of a family mapped to their ids.
func (db *DB) Keys(ctx context.Context, f model.Family) (map[string]int64, error) {
	ft, err := tableFor(f)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	q := fmt.Sprintf(`SELECT id, %s FROM %s`, ft.keyCol, ft.table)
	err = db.scanRows(ctx, q, func(rows *sql.Rows) error {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			return err
		}
		out[strings.ToLower(key)] = id
		return nil
	})
	return out, err
}
