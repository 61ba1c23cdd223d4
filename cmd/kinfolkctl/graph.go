package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/kinfolk/internal/genealogy"
	"github.com/suPer8Hu/kinfolk/internal/models"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo family into an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			inserted, err := genealogy.SeedDemo(cmd.Context(), a.Graph)
			if err != nil {
				return err
			}
			if !inserted {
				fmt.Fprintln(cmd.OutOrStdout(), "Database already has people; nothing seeded.")
				return nil
			}
			n, err := a.Graph.CountPeople(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d people.\n", n)
			return nil
		},
	}
}

func newPeopleCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "people",
		Short: "List people",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			people, err := a.Graph.ListPeople(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), people)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBORN\tHOME")
			for _, p := range people {
				home := ""
				if p.IsHomePerson {
					home = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.FullName(), p.BirthDate, home)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	cmd.AddCommand(newPeopleAddCmd(), newSetHomeCmd())
	return cmd
}

func newPeopleAddCmd() *cobra.Command {
	var in models.NewPerson
	var gender, mother, father string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			in.Gender = models.Gender(gender)
			if mother != "" {
				in.MotherID = &mother
			}
			if father != "" {
				in.FatherID = &father
			}
			p, err := a.Graph.AddPerson(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (ID: %s)\n", p.FullName(), p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.FirstName, "first", "", "First name (required)")
	cmd.Flags().StringVar(&in.LastName, "last", "", "Last name (required)")
	cmd.Flags().StringVar(&gender, "gender", "", "Male, Female, Other or Unknown")
	cmd.Flags().StringVar(&in.BirthDate, "birth", "", "Birth date, YYYY-MM-DD")
	cmd.Flags().StringVar(&in.DeathDate, "death", "", "Death date, YYYY-MM-DD")
	cmd.Flags().StringVar(&mother, "mother", "", "Mother's id")
	cmd.Flags().StringVar(&father, "father", "", "Father's id")
	cmd.Flags().BoolVar(&in.IsHomePerson, "home", false, "Make this the home person")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("last")
	return cmd
}

func newSetHomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "home <person-id>",
		Short: "Make a person the home person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.Graph.SetHomePerson(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now the home person.\n", p.FullName())
			return nil
		},
	}
}

func newRelationsCmd() *cobra.Command {
	var homeID string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "relations",
		Short: "Show the relationship report for the home person",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Graph.Relations(cmd.Context(), homeID)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), r)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RELATION\tNAME\tGEN\tSIDE")
			for _, an := range r.Ancestry {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", an.Relation, an.FullName, an.Generation, an.Side)
			}
			for _, k := range r.Descendants {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", k.Relation, k.FullName, k.Generation, k.Side)
			}
			for _, k := range r.Lateral {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", k.Relation, k.FullName, k.Generation, k.Side)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&homeID, "home", "", "Person id to centre on (default: the home person)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}
