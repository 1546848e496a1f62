package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/conneroisu/webgen/internal/backend"
	"github.com/conneroisu/webgen/internal/catalog"
	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/validation"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"templates", "t"},
	Short:   "Work with the template catalog",
}

var (
	listCategory string
	listLimit    int
)

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the templates the backend offers",
	Example: `  webgen template list
  webgen template list --category portfolio`,
	Args: cobra.NoArgs,
	RunE: runTemplateList,
}

var (
	convertID          string
	convertName        string
	convertCategory    string
	convertDescription string
	convertOutDir      string
)

var templateConvertCmd = &cobra.Command{
	Use:   "convert <page.html>",
	Short: "Split a standalone HTML page into a template",
	Long: `Turn a page into a template. The first inline <style> block becomes the
css fragment and the inline scripts the js fragment; the page itself is kept
as the html fragment.

The template is printed as JSON, or written as a catalog folder with
--out-dir.

Examples:
  webgen template convert landing.html --name "Landing" > landing.json
  webgen template convert cafe.html --id cafe --category business --out-dir templates`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplateConvert,
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateListCmd, templateConvertCmd)

	templateListCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Only list this category")
	templateListCmd.Flags().IntVar(&listLimit, "limit", 0, "List at most this many templates")

	templateConvertCmd.Flags().StringVar(&convertID, "id", "", "Template id (defaults to the file name)")
	templateConvertCmd.Flags().StringVar(&convertName, "name", "", "Display name (defaults to the id)")
	templateConvertCmd.Flags().StringVar(&convertCategory, "category", "other", "Gallery category")
	templateConvertCmd.Flags().StringVar(&convertDescription, "description", "", "Short description")
	templateConvertCmd.Flags().StringVar(&convertOutDir, "out-dir", "", "Write a catalog folder under this directory")
}

func runTemplateList(cmd *cobra.Command, _ []string) error {
	ctx := commandContext(cmd)
	rt, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	filter := backend.TemplateFilter{Limit: listLimit}
	if listCategory != "" && listCategory != "all" {
		filter.Category = catalog.NormalizeCategory(listCategory)
	}
	templates, err := rt.backend.ListTemplates(ctx, filter)
	if err != nil {
		return err
	}
	if len(templates) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No templates found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tDESCRIPTION")
	for _, t := range templates {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Identifier(), t.Name, catalog.Label(t.Category), t.Description)
	}
	return w.Flush()
}

func runTemplateConvert(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	frags := compositor.Extract(string(data))
	if frags.IsEmpty() {
		return fmt.Errorf("%s has no body markup to turn into a template", args[0])
	}

	id := convertID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	if err := validation.ValidateSlug(id); err != nil {
		return fmt.Errorf("template id: %w", err)
	}
	name := validation.SanitizeInput(convertName)
	if name == "" {
		name = id
	}

	payload := &compositor.TemplatePayload{
		Slug:        id,
		Name:        name,
		Category:    catalog.NormalizeCategory(convertCategory),
		Description: validation.SanitizeInput(convertDescription),
		PreviewJSON: &frags,
	}

	if convertOutDir != "" {
		folder, err := catalog.Save(convertOutDir, payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved template %s to %s\n", id, folder)
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
