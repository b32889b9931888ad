package mcpserver

// PageFormatContract describes the editable page format that editors and
// LLM clients must keep when changing manuscript pages.
const PageFormatContract = `# Palimpsest Page Format

Pages under ` + "`manuscript/chapters/`, `manuscript/characters/` and `manuscript/scenes/`" + ` are
editable. Every other page is generated from the database and is overwritten on the
next regeneration.

## Structure

` + "```" + `markdown
# The Station

- **Number:** 1
- **Type:** Prose
- **Status:** Draft
- **Arc:** [[journal/arcs/leaving|Leaving]]

## Characters

- [[manuscript/characters/clara|Clara]]

## Scenes

### Platform

Rain on the rails.

- [[journal/entries/2024/2024-01-02|2024-01-02]]

## References

- [[journal/entries/2024/2024-01-01|2024-01-01]] · Direct · "the last train"

---

Draws on 2 entries, 2024-01-01 to 2024-01-02.
` + "```" + `

## Rules

1. **One H1.** The title is the natural key of the entity. Renaming it does not rename
   the entity; the page then fails to ingest.
2. **Metadata lines** have the form ` + "`- **Label:** value`" + `. Editable labels:
   chapters take Number, Type, Status and Part; characters take Role; scenes take
   Origin and Chapter. Arc is inferred and ignored on ingest.
3. **Enumerated values** are matched case-insensitively:
   Type (Prose, Vignette, Poem, Letter), Status (Draft, Revised, Final),
   Origin (Journaled, Inferred, Invented, Composite),
   reference modes (Direct, Indirect, Paraphrase, Visual),
   contributions (Primary, Composite, Inspiration).
   An unknown value leaves the field unchanged and produces a warning.
4. **Sections** (` + "`## Characters`, `## Scenes`, `## References`, `## Based On`, `## Description`, `## Sources`" + `)
   replace the stored set when present. Remove a section to leave the set untouched;
   keep the heading with no items to clear it. Empty sections produce a lint warning.
5. **References** use ` + "`[[address|Key]]`" + ` or ` + "`[[Key]]`" + `. Unresolved references fail
   validation and block the sync.
6. **Scenes** are ` + "`### Name`" + ` blocks inside ` + "`## Scenes`" + `: a description paragraph
   followed by source entries. Listing a scene moves it into the chapter.
7. **The footer** after the final ` + "`---`" + ` is generated and never read.

Call ` + "`lint_page`" + ` with the new content before writing, then ` + "`sync_wiki`" + ` to ingest.
`
