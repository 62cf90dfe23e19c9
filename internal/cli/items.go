package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shoplist/internal/model"
	"github.com/dukerupert/shoplist/internal/reconcile"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Quantity int
	Unit     string
	Category string
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <list-id> <name>",
		Short: "Add an item to a list",
		Long: `Add an item to a list. Without --category the item is filed by name
(milk goes to Dairy, bread to Bakery).

Example:
  shoplist add 3f2a1b7c Milk --qty 2 --unit l`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Quantity, "qty", model.DefaultQuantity, "quantity")
	cmd.Flags().StringVar(&opts.Unit, "unit", model.DefaultUnit, "unit")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category (suggested from the name when omitted)")

	return cmd
}

func runAdd(opts *AddOptions, args []string, cmd *cobra.Command) error {
	in := model.CreateItemInput{Name: args[1]}
	if cmd.Flags().Changed("qty") {
		in.Quantity = &opts.Quantity
	}
	if cmd.Flags().Changed("unit") {
		in.Unit = &opts.Unit
	}
	if cmd.Flags().Changed("category") {
		in.Category = &opts.Category
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		listID, err := a.matchList(ctx, args[0])
		if err != nil {
			return err
		}
		item, _, err := a.rec.AddItem(ctx, listID, in)
		if err != nil {
			return err
		}
		return a.itemResult(ctx, item, "Added "+in.Name)
	})
}

// EditItemOptions holds flags for the edit-item command.
type EditItemOptions struct {
	*RootOptions
	Name      string
	Quantity  int
	Unit      string
	Category  string
	Completed bool
}

func NewEditItemCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditItemOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit-item <list-id> <item-id>",
		Short: "Change an item",
		Long: `Change any of an item's fields. Only the flags you pass are sent.

Example:
  shoplist edit-item 3f2a1b7c 9c0d11aa --qty 3 --completed=false`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEditItem(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "new name")
	cmd.Flags().IntVar(&opts.Quantity, "qty", 0, "new quantity")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "new unit")
	cmd.Flags().StringVar(&opts.Category, "category", "", "new category (empty clears it)")
	cmd.Flags().BoolVar(&opts.Completed, "completed", false, "mark as bought or not")

	return cmd
}

func runEditItem(opts *EditItemOptions, args []string, cmd *cobra.Command) error {
	var in model.UpdateItemInput
	flags := cmd.Flags()
	if flags.Changed("name") {
		in.Name = &opts.Name
	}
	if flags.Changed("qty") {
		in.Quantity = &opts.Quantity
	}
	if flags.Changed("unit") {
		in.Unit = &opts.Unit
	}
	if flags.Changed("category") {
		in.Category = &opts.Category
	}
	if flags.Changed("completed") {
		in.Completed = &opts.Completed
	}
	if in.Empty() {
		return NewExitError(ExitCommandError, "nothing to change: pass at least one of --name, --qty, --unit, --category, --completed")
	}

	return withApp(opts.RootOptions, cmd, func(ctx context.Context, a *app) error {
		if err := a.requireSession(ctx); err != nil {
			return err
		}
		listID, itemID, err := a.matchListItem(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		item, _, err := a.rec.UpdateItem(ctx, listID, itemID, in)
		if err != nil {
			return err
		}
		return a.itemResult(ctx, item, "Updated item "+shortID(itemID))
	})
}

func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "toggle <list-id> <item-id>",
		Short:         "Check an item off, or back on",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				listID, itemID, err := a.matchListItem(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				item, _, err := a.rec.ToggleItem(ctx, listID, itemID)
				if err != nil {
					return err
				}
				return a.itemResult(ctx, item, "Toggled item "+shortID(itemID))
			})
		},
	}
}

func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <list-id> <item-id>",
		Short:         "Remove an item from a list",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app) error {
				if err := a.requireSession(ctx); err != nil {
					return err
				}
				listID, itemID, err := a.matchListItem(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				origin, err := a.rec.DeleteItem(ctx, listID, itemID)
				if err != nil {
					return err
				}
				if err := a.out.emit(map[string]any{"listId": listID, "id": itemID, "queued": origin == reconcile.OriginQueued}, func(w io.Writer) {
					fmt.Fprintf(w, "Removed item %s\n", shortID(itemID))
				}); err != nil {
					return err
				}
				a.badge(ctx)
				return nil
			})
		},
	}
}

func (a *app) matchListItem(ctx context.Context, listRef, itemRef string) (string, string, error) {
	listID, err := a.matchList(ctx, listRef)
	if err != nil {
		return "", "", err
	}
	itemID, err := a.matchItem(ctx, listID, itemRef)
	if err != nil {
		return "", "", err
	}
	return listID, itemID, nil
}

// itemResult prints an item returned by a write. A queued write against a
// list that is not cached has no local copy to show.
func (a *app) itemResult(ctx context.Context, item *model.Item, fallback string) error {
	var err error
	if item == nil {
		err = a.out.emit(map[string]any{"queued": true}, func(w io.Writer) {
			fmt.Fprintln(w, fallback)
		})
	} else {
		err = a.out.emit(item, func(w io.Writer) { a.out.itemLine(w, *item) })
	}
	if err != nil {
		return err
	}
	a.badge(ctx)
	return nil
}
