package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/webgen/internal/compositor"
	"github.com/conneroisu/webgen/internal/config"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/spf13/cobra"
)

var (
	composeTemplate string
	composeOut      string
)

var composeCmd = &cobra.Command{
	Use:   "compose [template.json]",
	Short: "Compose a template into a standalone HTML document",
	Long: `Compose a template's html, css and js fragments into one document with
the Tailwind runtime, a style block and a trailing script.

The template is read from a JSON file (any of the previewJson, content or
flat shapes), from stdin with "-", or fetched from the backend by id.

Examples:
  webgen compose cafe.json > cafe.html
  webgen compose --template portfolio-clean --out portfolio.html
  cat page.json | webgen compose -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)

	composeCmd.Flags().StringVarP(&composeTemplate, "template", "t", "", "Fetch the template with this id from the backend")
	composeCmd.Flags().StringVarP(&composeOut, "out", "o", "", "Write the document to a file instead of stdout")
}

func runCompose(cmd *cobra.Command, args []string) error {
	payload, tailwind, err := resolveTemplate(cmd, composeTemplate, args)
	if err != nil {
		return err
	}
	frags, err := payload.Fragments()
	if err != nil {
		return err
	}
	doc, err := compositor.NewCompositor(compositor.Options{TailwindURL: tailwind}).Compose(frags)
	if err != nil {
		return err
	}
	return writeOutput(cmd, composeOut, []byte(doc))
}

// resolveTemplate loads a template from the backend when id is set and
// from the JSON file named by args otherwise. It also returns the
// configured Tailwind URL.
func resolveTemplate(cmd *cobra.Command, id string, args []string) (*compositor.TemplatePayload, string, error) {
	if id != "" {
		ctx := commandContext(cmd)
		rt, err := openApp(ctx, cmd)
		if err != nil {
			return nil, "", err
		}
		defer rt.Close()
		tpl, err := rt.backend.FetchTemplate(ctx, id)
		if err != nil {
			return nil, "", err
		}
		return tpl, rt.cfg.Render.TailwindURL, nil
	}

	if len(args) == 0 {
		return nil, "", fmt.Errorf("name a template file or pass --template")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	data, err := readInput(cmd, args[0])
	if err != nil {
		return nil, "", err
	}
	payload, err := compositor.DecodeTemplate(data)
	if err != nil {
		return nil, "", err
	}
	return payload, cfg.Render.TailwindURL, nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, weberrors.NewIOError(weberrors.ErrCodeIO, "reading "+name, err)
	}
	return data, nil
}

// writeOutput writes data to path, or stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "writing "+path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%d bytes)\n", path, len(data))
	return nil
}
