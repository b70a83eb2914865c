package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"atelier/internal/library"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Curate the category and subfolder taxonomy",
	}
	libraryCmd.AddCommand(newLibraryShowCommand(ctx))
	libraryCmd.AddCommand(newLibraryCategoryCommand(ctx))
	libraryCmd.AddCommand(newLibrarySubfolderCommand(ctx))
	libraryCmd.AddCommand(newLibraryAssetCommand(ctx))
	return libraryCmd
}

func newLibraryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the library tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				doc := env.library.Get()
				if jsonOutput {
					return writeJSON(cmd, doc)
				}
				out := cmd.OutOrStdout()
				if len(doc.Categories) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}
				for _, cat := range doc.Categories {
					printCategory(out, cat)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printCategory(out io.Writer, cat library.Category) {
	fmt.Fprintf(out, "%s  %s (z %d)\n", cat.ID, cat.Name, cat.ZIndex)
	for _, sub := range cat.Subfolders {
		fmt.Fprintf(out, "  %s/ (%d)\n", sub.Name, len(sub.Assets))
		for _, ref := range sub.Assets {
			fmt.Fprintf(out, "    %-24s %s\n", ref.Name, shortFingerprint(ref.Hash))
		}
	}
}

func newLibraryCategoryCommand(ctx *commandContext) *cobra.Command {
	categoryCmd := &cobra.Command{
		Use:   "category",
		Short: "Add, update, or delete categories",
	}

	var addZ int
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				cat, err := env.library.CreateCategory(cmd.Context(), args[0], addZ)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created category %s (%s)\n", cat.Name, cat.ID)
				return nil
			})
		},
	}
	add.Flags().IntVar(&addZ, "z-index", 0, "Ordering index")

	var newName string
	var newZ int
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or reorder a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var namePtr *string
			var zPtr *int
			if cmd.Flags().Changed("name") {
				namePtr = &newName
			}
			if cmd.Flags().Changed("z-index") {
				zPtr = &newZ
			}
			if namePtr == nil && zPtr == nil {
				return fmt.Errorf("nothing to update; pass --name or --z-index")
			}
			return ctx.withData(lockShared, func(env *dataEnv) error {
				cat, err := env.library.UpdateCategory(cmd.Context(), args[0], namePtr, zPtr)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated category %s: %s (z %d)\n", cat.ID, cat.Name, cat.ZIndex)
				return nil
			})
		},
	}
	update.Flags().StringVar(&newName, "name", "", "New name")
	update.Flags().IntVar(&newZ, "z-index", 0, "New ordering index")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category and its subfolders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				if err := env.library.DeleteCategory(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
				return nil
			})
		},
	}

	categoryCmd.AddCommand(add, update, del)
	return categoryCmd
}

func newLibrarySubfolderCommand(ctx *commandContext) *cobra.Command {
	subfolderCmd := &cobra.Command{
		Use:   "subfolder",
		Short: "Add, rename, or delete subfolders",
	}

	add := &cobra.Command{
		Use:   "add <category-id> <name>",
		Short: "Create a subfolder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				if _, err := env.library.CreateSubfolder(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Subfolder %s ready\n", strings.TrimSpace(args[1]))
				return nil
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <category-id> <old> <new>",
		Short: "Rename a subfolder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				if _, err := env.library.RenameSubfolder(cmd.Context(), args[0], args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed subfolder %s to %s\n", args[1], args[2])
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <category-id> <name>",
		Short: "Delete a subfolder and its refs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				if _, err := env.library.DeleteSubfolder(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted subfolder %s\n", args[1])
				return nil
			})
		},
	}

	subfolderCmd.AddCommand(add, rename, del)
	return subfolderCmd
}

func newLibraryAssetCommand(ctx *commandContext) *cobra.Command {
	assetCmd := &cobra.Command{
		Use:   "asset",
		Short: "File or remove asset refs",
	}

	var refName string
	add := &cobra.Command{
		Use:   "add <category-id> <subfolder> <fingerprint>",
		Short: "File an asset under a subfolder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				asset, err := env.store.Get(cmd.Context(), args[2])
				if err != nil {
					return err
				}
				name := strings.TrimSpace(refName)
				if name == "" {
					name = asset.Name
				}
				if _, err := env.library.AddAsset(cmd.Context(), args[0], args[1], name, asset.Fingerprint); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Filed %s under %s\n", shortFingerprint(asset.Fingerprint), args[1])
				return nil
			})
		},
	}
	add.Flags().StringVar(&refName, "name", "", "Display name for the ref (default: asset name)")

	remove := &cobra.Command{
		Use:   "remove <category-id> <subfolder> <fingerprint>",
		Short: "Remove an asset ref from a subfolder",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				if _, err := env.library.RemoveAsset(cmd.Context(), args[0], args[1], args[2]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", shortFingerprint(args[2]), args[1])
				return nil
			})
		},
	}

	assetCmd.AddCommand(add, remove)
	return assetCmd
}
