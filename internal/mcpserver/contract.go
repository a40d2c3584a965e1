package mcpserver

// NoteFormat describes how QuickNote stores notes on disk, for LLM
// consumers reading or writing the notes directory.
const NoteFormat = `# QuickNote Note Format

Each note is one JSON file in a single flat directory.

## File name

` + "`" + `YYYYMMDDHHMMSS_<title>.json` + "`" + `

- The timestamp is the local creation time, to the second.
- Whitespace in the title becomes ` + "`" + `_` + "`" + `; path separators, ` + "`" + `:` + "`" + ` and control
  characters become ` + "`" + `-` + "`" + `.
- Two notes created in the same second with the same title get ` + "`" + `_2` + "`" + `, ` + "`" + `_3` + "`" + `, ... before ` + "`" + `.json` + "`" + `.
- The list is ordered by file name descending, so the newest note comes first.

## Content

` + "```" + `json
{
  "title": "Groceries",
  "content": "milk, eggs",
  "created": "2024-06-01T08:00:00+02:00",
  "updated": "2024-06-01T08:05:12+02:00"
}
` + "```" + `

1. Exactly these four fields are written. Unknown fields are ignored on read.
2. A missing ` + "`" + `title` + "`" + ` reads as ` + "`" + `Untitled` + "`" + `; a missing ` + "`" + `content` + "`" + ` reads as empty.
3. Timestamps are RFC 3339. Other common date layouts are accepted on read.
4. ` + "`" + `content` + "`" + ` is plain text. There is no markup, no tags and no links.
5. Files are replaced atomically; never edit a note in place from a partial write.

## Tools

- Prefer ` + "`" + `create_note` + "`" + ` and ` + "`" + `update_note` + "`" + ` over writing files directly: the running
  session keeps an in-memory copy and only reconciles external edits on file events.
- ` + "`" + `delete_note` + "`" + ` is permanent. It needs ` + "`" + `confirm=true` + "`" + ` or ` + "`" + `force=true` + "`" + `.
`
