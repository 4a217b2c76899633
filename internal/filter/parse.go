package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/collection"
)

// Query tokens with special meaning.
const (
	NoTagToken     = ":no-tag"
	FilenamePrefix = "fn:"
	NegatePrefix   = "!"
)

// Resolver maps a tag name or alias to its identifier.
type Resolver interface {
	ResolveAlias(word string) (collection.Uid, bool)
}

// Namer maps a tag identifier to its display name.
type Namer interface {
	TagName(id collection.Uid) string
}

// Parse turns query text into a Spec. Tokens are whitespace separated:
//
//	:no-tag   entry has no tags
//	!name     entry lacks tag name
//	fn:text   base name contains text (case-insensitive)
//	name      entry has tag name
//
// Names that do not resolve are returned in unknown, without '!', and do
// not fail the parse. Contradictory or malformed queries fail as a whole.
func Parse(text string, r Resolver) (Spec, []string, error) {
	var (
		spec    Spec
		unknown []string
		sawFn   bool
	)
	for _, tok := range strings.Fields(text) {
		switch {
		case tok == NoTagToken:
			spec.DoesntHaveAnyTags = true

		case strings.HasPrefix(tok, FilenamePrefix):
			sub := strings.ToLower(strings.TrimPrefix(tok, FilenamePrefix))
			if sub == "" {
				return Spec{}, nil, fmt.Errorf("filter: empty %q token: %w", FilenamePrefix, apperr.ErrInvalid)
			}
			if sawFn {
				return Spec{}, nil, fmt.Errorf("filter: more than one %q token: %w", FilenamePrefix, apperr.ErrAmbiguous)
			}
			sawFn = true
			spec.FilenameSubstring = sub

		case strings.HasPrefix(tok, ":"):
			return Spec{}, nil, fmt.Errorf("filter: unknown directive %q: %w", tok, apperr.ErrInvalid)

		case strings.HasPrefix(tok, NegatePrefix):
			name := strings.TrimPrefix(tok, NegatePrefix)
			if name == "" {
				return Spec{}, nil, fmt.Errorf("filter: bare %q: %w", NegatePrefix, apperr.ErrInvalid)
			}
			id, ok := r.ResolveAlias(name)
			if !ok {
				unknown = appendUnique(unknown, name)
				continue
			}
			addTag(&spec.DoesntHaveTags, id)

		default:
			id, ok := r.ResolveAlias(tok)
			if !ok {
				unknown = appendUnique(unknown, tok)
				continue
			}
			addTag(&spec.HasTags, id)
		}
	}

	for id := range spec.HasTags {
		if _, both := spec.DoesntHaveTags[id]; both {
			return Spec{}, nil, fmt.Errorf("filter: tag %d both required and excluded: %w", id, apperr.ErrAmbiguous)
		}
	}
	if spec.DoesntHaveAnyTags && len(spec.HasTags) > 0 {
		return Spec{}, nil, fmt.Errorf("filter: %q combined with required tags: %w", NoTagToken, apperr.ErrAmbiguous)
	}
	return spec, unknown, nil
}

// Format renders spec back as query text using canonical tag names.
func Format(spec *Spec, n Namer) string {
	var parts []string
	if spec.DoesntHaveAnyTags {
		parts = append(parts, NoTagToken)
	}
	for _, id := range sortedIDs(spec.HasTags) {
		parts = append(parts, n.TagName(id))
	}
	for _, id := range sortedIDs(spec.DoesntHaveTags) {
		parts = append(parts, NegatePrefix+n.TagName(id))
	}
	if spec.FilenameSubstring != "" {
		parts = append(parts, FilenamePrefix+spec.FilenameSubstring)
	}
	return strings.Join(parts, " ")
}

func addTag(set *map[collection.Uid]struct{}, id collection.Uid) {
	if *set == nil {
		*set = make(map[collection.Uid]struct{})
	}
	(*set)[id] = struct{}{}
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}

func sortedIDs(set map[collection.Uid]struct{}) []collection.Uid {
	out := make([]collection.Uid, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
