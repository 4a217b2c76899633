package mcpserver

// QuerySyntax documents the filter language accepted by filter_entries.
const QuerySyntax = `# cowbump Query Syntax

A query is a list of whitespace-separated tokens. An entry matches when
every token matches.

| Token      | Matches entries that                                    |
|------------|---------------------------------------------------------|
| ` + "`name`" + `     | carry the tag called name (canonical name or alias)     |
| ` + "`!name`" + `    | do not carry the tag                                    |
| ` + "`:no-tag`" + `  | carry no tags at all                                    |
| ` + "`fn:text`" + `  | have a file name containing text, ignoring case         |

## Rules

1. An empty query matches every entry.
2. Names that match no tag are reported back as unknown and ignored.
3. A tag may not be both required and excluded.
4. ` + "`:no-tag`" + ` cannot be combined with required tags.
5. Only one ` + "`fn:`" + ` token is allowed.
6. With expand set, an entry also carries every tag its tags imply.
`
