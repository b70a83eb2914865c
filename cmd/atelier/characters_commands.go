package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCharactersCommand(ctx *commandContext) *cobra.Command {
	charactersCmd := &cobra.Command{
		Use:   "characters",
		Short: "Inspect the character index",
	}
	charactersCmd.AddCommand(newCharactersListCommand(ctx))
	charactersCmd.AddCommand(newCharactersShowCommand(ctx))
	return charactersCmd
}

func newCharactersListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List characters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				chars := env.characters.List()
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"characters": chars})
				}
				out := cmd.OutOrStdout()
				if len(chars) == 0 {
					fmt.Fprintln(out, "No characters")
					return nil
				}
				rows := make([][]string, 0, len(chars))
				for _, c := range chars {
					layers := 0
					for _, refs := range c.LayerGroups {
						layers += len(refs)
					}
					rows = append(rows, []string{c.Name, strconv.Itoa(len(c.GroupOrder)), strconv.Itoa(layers)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Name", "Groups", "Layers"}, rows, 1, 2))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCharactersShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a character's layer groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withData(lockShared, func(env *dataEnv) error {
				char, err := env.characters.Get(args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, char)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", char.Name, char.ID)
				for _, group := range char.GroupOrder {
					refs := char.LayerGroups[group]
					fmt.Fprintf(out, "  %s (%d)\n", group, len(refs))
					for _, ref := range refs {
						fmt.Fprintf(out, "    %-24s %s\n", ref.Name, shortFingerprint(ref.Hash))
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
