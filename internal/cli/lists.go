package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/reconcile"
)

func NewListsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Show all lists",
		Long: `Fetch your lists from the server and refresh the local cache. When the
server is unreachable the cached lists are shown instead, including changes
that are still waiting to sync.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				lists, _, err := a.rec.Refresh(ctx)
				if err != nil {
					return err
				}
				if err := a.out.emit(lists, func(w io.Writer) {
					if len(lists) == 0 {
						fmt.Fprintln(w, mutedStyle.Render("No lists yet. Create one with: shoplist create <name>"))
						return
					}
					for _, l := range lists {
						a.out.listLine(w, l)
					}
				}); err != nil {
					return err
				}
				a.badge(ctx)
				return nil
			})
		},
	}
}

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <list-id>",
		Short:         "Show one list with its items",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				id, err := a.matchList(ctx, args[0])
				if err != nil {
					return err
				}
				list, _, err := a.rec.LoadList(ctx, id)
				if err != nil {
					return err
				}
				if list == nil {
					return NewExitError(ExitFailure, fmt.Sprintf("list %s is not available offline", args[0]))
				}
				if err := a.out.emit(list, func(w io.Writer) { a.out.listDetail(w, *list) }); err != nil {
					return err
				}
				a.badge(ctx)
				return nil
			})
		},
	}
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Description string
	Items       []string
}

func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a list",
		Long: `Create a list, optionally with initial items. Each --item is
name[:quantity[:unit[:category]]].

Example:
  shoplist create "Milk run" --item Milk:2:l --item Bread`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Description, "description", "", "list description")
	cmd.Flags().StringArrayVar(&opts.Items, "item", nil, "initial item as name[:quantity[:unit[:category]]] (repeatable)")

	return cmd
}

func runCreate(opts *CreateOptions, name string, cmd *cobra.Command) error {
	in := model.CreateListInput{Name: name}
	if cmd.Flags().Changed("description") {
		in.Description = &opts.Description
	}
	for _, spec := range opts.Items {
		item, err := parseItemSpec(spec)
		if err != nil {
			return err
		}
		in.Items = append(in.Items, item)
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		list, _, err := a.rec.CreateList(ctx, in)
		if err != nil {
			return err
		}
		if list == nil {
			return NewExitError(ExitFailure, "list was not created")
		}
		if err := a.out.emit(list, func(w io.Writer) { a.out.listDetail(w, *list) }); err != nil {
			return err
		}
		a.badge(ctx)
		return nil
	})
}

// RenameOptions holds flags for the rename command.
type RenameOptions struct {
	*RootOptions
	Description string
}

func NewRenameCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenameOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rename <list-id> [new-name]",
		Short: "Rename a list or change its description",
		Long: `Rename a list. Pass --description to change the description, or
--description "" to remove it.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRename(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Description, "description", "", "new description")

	return cmd
}

func runRename(opts *RenameOptions, args []string, cmd *cobra.Command) error {
	var in model.UpdateListInput
	if len(args) == 2 {
		in.Name = &args[1]
	}
	if cmd.Flags().Changed("description") {
		in.Description = &opts.Description
	}
	if in.Name == nil && in.Description == nil {
		return NewExitError(ExitCommandError, "nothing to change: pass a new name or --description")
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		id, err := a.matchList(ctx, args[0])
		if err != nil {
			return err
		}
		list, _, err := a.rec.UpdateList(ctx, id, in)
		if err != nil {
			return err
		}
		if list == nil {
			return a.out.emit(map[string]string{"id": id}, func(w io.Writer) {
				fmt.Fprintf(w, "Change to list %s queued\n", shortID(id))
			})
		}
		if err := a.out.emit(list, func(w io.Writer) { a.out.listLine(w, *list) }); err != nil {
			return err
		}
		a.badge(ctx)
		return nil
	})
}

func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <list-id>",
		Short:         "Delete a list",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				id, err := a.matchList(ctx, args[0])
				if err != nil {
					return err
				}
				origin, err := a.rec.DeleteList(ctx, id)
				if err != nil {
					return err
				}
				if err := a.out.emit(map[string]any{"id": id, "queued": origin == reconcile.OriginQueued}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted list %s\n", shortID(id))
				}); err != nil {
					return err
				}
				a.badge(ctx)
				return nil
			})
		},
	}
}

func NewSharedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shared <list-id>",
		Short: "Show a publicly shared list",
		Long: `Show a list someone shared with you. The last copy fetched is kept so
it can be shown again while offline.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				shared, origin, err := a.rec.LoadShared(ctx, args[0])
				if err != nil {
					return err
				}
				if shared == nil {
					return NewExitError(ExitFailure, fmt.Sprintf("shared list %s is not available offline", args[0]))
				}
				return a.out.emit(shared, func(w io.Writer) {
					a.out.listDetail(w, shared.List)
					if origin == reconcile.OriginCache {
						fmt.Fprintln(w, mutedStyle.Render("saved "+a.out.ago(shared.CachedAt)))
					}
				})
			})
		},
	}
}

// parseItemSpec reads name[:quantity[:unit[:category]]].
func parseItemSpec(spec string) (model.CreateItemInput, error) {
	parts := strings.Split(spec, ":")
	if len(parts) > 4 {
		return model.CreateItemInput{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid item %q: use name[:quantity[:unit[:category]]]", spec))
	}
	in := model.CreateItemInput{Name: strings.TrimSpace(parts[0])}
	if in.Name == "" {
		return model.CreateItemInput{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid item %q: name is required", spec))
	}
	if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		qty, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || qty < 1 {
			return model.CreateItemInput{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid item %q: quantity must be a positive number", spec))
		}
		in.Quantity = &qty
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		unit := strings.TrimSpace(parts[2])
		in.Unit = &unit
	}
	if len(parts) > 3 && strings.TrimSpace(parts[3]) != "" {
		category := strings.TrimSpace(parts[3])
		in.Category = &category
	}
	return in, nil
}
