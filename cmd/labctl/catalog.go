package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/labtrack/lims/internal/domain/catalog"
)

// loadCatalog resolves the --catalog flag, then CATALOG_PATH
func loadCatalog(cmd *cobra.Command) (*catalog.Static, error) {
	path, _ := cmd.Flags().GetString("catalog")
	if path == "" {
		path = os.Getenv("CATALOG_PATH")
	}
	return catalog.FromPath(path)
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the reference catalog",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the catalog with prices and reference ranges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			format, _ := cmd.Flags().GetString("format")
			out := cmd.OutOrStdout()

			switch format {
			case "yaml":
				return catalog.Encode(out, cat)
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"registration_fee": cat.RegistrationFee(),
					"sections":         cat.Sections(),
				})
			case "table":
				fmt.Fprintf(out, "Registration/Consultation  ₱%.2f\n", cat.RegistrationFee())
				for _, section := range cat.Sections() {
					fmt.Fprintf(out, "\n%s\n", section.Name)
					for _, test := range section.Tests {
						fmt.Fprintf(out, "  %s\n", describeTest(section.Name, test, cat))
					}
				}
				return nil
			default:
				return fmt.Errorf("unknown format %q (want table, yaml or json)", format)
			}
		},
	}
	show.Flags().String("format", "table", "output format: table, yaml or json")
	cmd.AddCommand(show)
	return cmd
}

func describeTest(section string, test catalog.Test, cat catalog.Catalog) string {
	var b strings.Builder
	b.WriteString(test.Name)
	if test.Parent != "" {
		fmt.Fprintf(&b, " (component of %s)", test.Parent)
	} else {
		fmt.Fprintf(&b, "  ₱%.2f", catalog.PriceOrDefault(cat, section, test.Name))
	}
	if test.Range != nil {
		fmt.Fprintf(&b, "  [%s]", test.Range.String())
	}
	return b.String()
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify VALUE",
		Short: "Flag a result value against its reference range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			section, _ := cmd.Flags().GetString("section")
			testName, _ := cmd.Flags().GetString("test")
			section = strings.ToUpper(section)

			flag := catalog.Classify(cat, args[0], testName, section)
			if rng, ok := cat.Range(section, testName); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (reference %s)\n", flag, rng.String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (no reference range)\n", flag)
			return nil
		},
	}
	cmd.Flags().String("section", "", "lab section, e.g. HEMATOLOGY")
	cmd.Flags().String("test", "", "test name, e.g. Hemoglobin")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}
