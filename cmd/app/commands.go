package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/cowbump/internal/apperr"
	"github.com/starford/cowbump/internal/filter"
	"github.com/starford/cowbump/internal/index"
)

var stdout io.Writer = os.Stdout

func needArgs(cmd *cli.Command, n int) error {
	if cmd.NArg() < n {
		return fmt.Errorf("%s: expected %s: %w", cmd.Name, cmd.ArgsUsage, apperr.ErrInvalid)
	}
	return nil
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "scan",
			Usage:     "Reconcile the collection with the files on disk",
			ArgsUsage: "[dir]",
			Action:    scanAction,
		},
		{
			Name:      "query",
			Usage:     "List entries matching a query",
			ArgsUsage: "<query...>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "expand", Aliases: []string{"e"}, Usage: "Treat implied tags as carried"},
			},
			Action: queryAction,
		},
		{
			Name:      "complete",
			Usage:     "Suggest tag names for the last word of a query",
			ArgsUsage: "<query...>",
			Action:    completeAction,
		},
		{
			Name:   "tags",
			Usage:  "List tags",
			Action: tagsAction,
		},
		{
			Name:     "tag",
			Usage:    "Edit tags",
			Commands: tagCommands(),
		},
		{
			Name:     "seq",
			Usage:    "Edit sequences",
			Commands: seqCommands(),
		},
		{
			Name:      "mv",
			Usage:     "Rename an entry's file within its directory",
			ArgsUsage: "<path> <new-name>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.Move(cmd.Args().Get(0), cmd.Args().Get(1))
				})
			},
		},
		{
			Name:      "rm",
			Usage:     "Delete entries and their files",
			ArgsUsage: "<path...>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 1); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.Remove(cmd.Args().Slice()...)
				})
			},
		},
		{
			Name:  "backup",
			Usage: "Write the backup snapshot",
			Action: func(_ context.Context, cmd *cli.Command) error {
				s, err := openSession(cmd, "")
				if err != nil {
					return err
				}
				return s.cat.Backup()
			},
		},
		{
			Name:  "restore",
			Usage: "Replace the snapshot with the backup",
			Action: func(_ context.Context, cmd *cli.Command) error {
				return mutate(cmd, func(s *session) error {
					return s.cat.RestoreBackup()
				})
			},
		},
		{
			Name:  "export",
			Usage: "Mirror the snapshot into SQLite",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "SQLite file (defaults to sqlite.path)"},
				&cli.BoolFlag{Name: "usage", Usage: "Print tag usage read back from the export"},
				&cli.StringFlag{Name: "search", Usage: "Search the export by path and tag names"},
				&cli.StringFlag{Name: "tag", Usage: "List exported paths carrying a tag name or alias"},
				&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum search results"},
			},
			Action: exportAction,
		},
		{
			Name:   "watch",
			Usage:  "Rescan and save whenever the collection changes",
			Action: runWatch,
		},
		{
			Name:   "mcp",
			Usage:  "Serve MCP tools on stdio",
			Action: runMCP,
		},
	}
}

func scanAction(_ context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, cmd.Args().First())
	if err != nil {
		return err
	}
	rep, err := s.cat.Reconcile()
	if err != nil {
		return err
	}
	if err := s.cat.Save(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "added %d, removed %d\n", len(rep.Added), len(rep.Removed))
	return nil
}

func queryAction(_ context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	res, err := s.cat.Query(strings.Join(cmd.Args().Slice(), " "), cmd.Bool("expand"))
	if err != nil {
		return err
	}
	for _, name := range res.Unknown {
		fmt.Fprintf(os.Stderr, "unknown tag: %s\n", name)
	}
	if res.Query != "" {
		fmt.Fprintf(os.Stderr, "query: %s\n", res.Query)
	}
	for _, p := range res.Paths {
		fmt.Fprintln(stdout, p)
	}
	return nil
}

func completeAction(_ context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	for _, name := range filter.Complete(strings.Join(cmd.Args().Slice(), " "), s.cat.Collection()) {
		fmt.Fprintln(stdout, name)
	}
	return nil
}

func tagsAction(_ context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	for _, t := range s.cat.Tags() {
		line := t.Names[0]
		if len(t.Names) > 1 {
			line += " (" + strings.Join(t.Names[1:], ", ") + ")"
		}
		if len(t.Implies) > 0 {
			line += " -> " + strings.Join(t.Implies, ", ")
		}
		fmt.Fprintf(stdout, "%s [%d]\n", line, t.Entries)
	}
	return nil
}

func exportAction(_ context.Context, cmd *cli.Command) error {
	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	out := cmd.String("out")
	if out == "" {
		out = s.cfg.SQLite.Path
	}
	db, err := index.Open(out)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := s.cat.Export(db)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported %d entries, %d tags, %d sequences to %s\n", st.Entries, st.Tags, st.Sequences, out)
	if cmd.Bool("usage") {
		if err := printUsage(db); err != nil {
			return err
		}
	}
	if q := cmd.String("search"); q != "" {
		if err := printSearch(db, q, int(cmd.Int("limit"))); err != nil {
			return err
		}
	}
	if name := cmd.String("tag"); name != "" {
		paths, err := db.PathsWithTag(name)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(stdout, p)
		}
	}
	return nil
}

func printSearch(q index.Querier, query string, limit int) error {
	results, err := q.Search(query, limit)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Tags == "" {
			fmt.Fprintln(stdout, r.Path)
			continue
		}
		fmt.Fprintf(stdout, "%s\t%s\n", r.Path, r.Tags)
	}
	return nil
}

func printUsage(q index.Querier) error {
	usage, err := q.TagUsage()
	if err != nil {
		return err
	}
	sum, err := q.SnapshotChecksum()
	if err != nil {
		return err
	}
	for _, tc := range usage {
		fmt.Fprintf(stdout, "%6d  %s\n", tc.Entries, tc.Name)
	}
	fmt.Fprintf(stdout, "snapshot sha256 %s\n", sum)
	return nil
}

func tagCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "new",
			Usage:     "Create a tag",
			ArgsUsage: "<name> [alias...]",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 1); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					c := s.cat.Collection()
					for _, n := range cmd.Args().Slice() {
						if _, taken := c.ResolveAlias(n); taken {
							return fmt.Errorf("tag %q: %w", n, apperr.ErrAlreadyExists)
						}
					}
					_, err := c.AddTag(cmd.Args().Slice())
					return err
				})
			},
		},
		{
			Name:      "alias",
			Usage:     "Add an alias to a tag",
			ArgsUsage: "<tag> <alias>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					ids, err := s.cat.ResolveTags(cmd.Args().Slice()[:1], false)
					if err != nil {
						return err
					}
					return s.cat.Collection().AddAlias(ids[0], cmd.Args().Get(1))
				})
			},
		},
		{
			Name:      "unalias",
			Usage:     "Remove a name from a tag",
			ArgsUsage: "<tag> <alias>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					ids, err := s.cat.ResolveTags(cmd.Args().Slice()[:1], false)
					if err != nil {
						return err
					}
					return s.cat.Collection().RemoveAlias(ids[0], cmd.Args().Get(1))
				})
			},
		},
		{
			Name:      "imply",
			Usage:     "Make a tag imply another",
			ArgsUsage: "<tag> <implied>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "remove", Usage: "Remove the implication instead"},
			},
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					ids, err := s.cat.ResolveTags(cmd.Args().Slice()[:2], false)
					if err != nil {
						return err
					}
					if cmd.Bool("remove") {
						return s.cat.Collection().RemoveImplication(ids[0], ids[1])
					}
					return s.cat.Collection().AddImplication(ids[0], ids[1])
				})
			},
		},
		{
			Name:      "attach",
			Usage:     "Attach tags to an entry",
			ArgsUsage: "<path> <tag...>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "create", Usage: "Create missing tags"},
			},
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.TagEntry(cmd.Args().First(), cmd.Args().Tail(), cmd.Bool("create"))
				})
			},
		},
		{
			Name:      "detach",
			Usage:     "Detach tags from an entry",
			ArgsUsage: "<path> <tag...>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.UntagEntry(cmd.Args().First(), cmd.Args().Tail())
				})
			},
		},
		{
			Name:      "rm",
			Usage:     "Delete tags and detach them everywhere",
			ArgsUsage: "<tag...>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 1); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					ids, err := s.cat.ResolveTags(cmd.Args().Slice(), false)
					if err != nil {
						return err
					}
					s.cat.Collection().DeleteTags(ids...)
					return nil
				})
			},
		},
	}
}

func seqCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "new",
			Usage:     "Create a sequence",
			ArgsUsage: "<name>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 1); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					name := cmd.Args().First()
					if _, err := s.cat.SequenceByName(name); err == nil {
						return fmt.Errorf("sequence %q: %w", name, apperr.ErrAlreadyExists)
					} else if !errors.Is(err, apperr.ErrNotFound) {
						return err
					}
					s.cat.Collection().AddSequence(name)
					return nil
				})
			},
		},
		{
			Name:      "add",
			Usage:     "Append entries to a sequence",
			ArgsUsage: "<name> <path...>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.AppendToSequence(cmd.Args().First(), cmd.Args().Tail()...)
				})
			},
		},
		{
			Name:      "remove",
			Usage:     "Drop entries from a sequence",
			ArgsUsage: "<name> <path...>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.RemoveFromSequence(cmd.Args().First(), cmd.Args().Tail()...)
				})
			},
		},
		{
			Name:      "rename",
			Usage:     "Rename a sequence",
			ArgsUsage: "<name> <new-name>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 2); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.RenameSequence(cmd.Args().Get(0), cmd.Args().Get(1))
				})
			},
		},
		{
			Name:      "rm",
			Usage:     "Delete a sequence; its entries stay",
			ArgsUsage: "<name>",
			Action: func(_ context.Context, cmd *cli.Command) error {
				if err := needArgs(cmd, 1); err != nil {
					return err
				}
				return mutate(cmd, func(s *session) error {
					return s.cat.DeleteSequence(cmd.Args().First())
				})
			},
		},
		{
			Name:  "ls",
			Usage: "List sequences",
			Action: func(_ context.Context, cmd *cli.Command) error {
				s, err := openSession(cmd, "")
				if err != nil {
					return err
				}
				for _, seq := range s.cat.Sequences() {
					fmt.Fprintf(stdout, "%s (%d)\n", seq.Name, len(seq.Paths))
					for _, p := range seq.Paths {
						fmt.Fprintf(stdout, "  %s\n", p)
					}
				}
				return nil
			},
		},
	}
}
