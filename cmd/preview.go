package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/webgen/internal/compositor"
	weberrors "github.com/conneroisu/webgen/internal/errors"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/spf13/cobra"
)

var (
	previewTemplate string
	previewOutDir   string
	previewViews    []sandbox.Viewport
	previewFullPage bool
)

var previewCmd = &cobra.Command{
	Use:     "preview [template.json]",
	Aliases: []string{"p"},
	Short:   "Screenshot a template at each device width",
	Long: `Render a composed template in a headless browser and save one PNG per
view mode: desktop (1280px), tablet (768px) and mobile (375px).

Examples:
  webgen preview --template cafe
  webgen preview page.json --views mobile --full-page
  webgen preview --template cafe --browser-url ws://127.0.0.1:9222/devtools/browser/...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVarP(&previewTemplate, "template", "t", "", "Fetch the template with this id from the backend")
	previewCmd.Flags().StringVarP(&previewOutDir, "out-dir", "o", "screenshots", "Directory for the screenshots")
	previewCmd.Flags().Var(newViewsValue(&previewViews, sandbox.Viewports()), "views", "View modes to capture")
	previewCmd.Flags().BoolVar(&previewFullPage, "full-page", false, "Capture the whole page instead of the first screen")
	previewCmd.Flags().String("browser-url", "", "DevTools URL of a running browser")
	previewCmd.Flags().String("browser-bin", "", "Browser binary to launch")

	bindFlags(previewCmd.Flags(), map[string]string{
		"browser-url": "browser.remote_url",
		"browser-bin": "browser.bin",
	})
}

func runPreview(cmd *cobra.Command, args []string) error {
	payload, tailwind, err := resolveTemplate(cmd, previewTemplate, args)
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

	ctx := commandContext(cmd)
	rt, err := openBrowserApp(cmd)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := os.MkdirAll(previewOutDir, 0o755); err != nil {
		return weberrors.NewIOError(weberrors.ErrCodeIO, "creating "+previewOutDir, err)
	}
	name := payload.Identifier()
	if name == "" {
		name = "template"
	}

	frame := sandbox.NewFrame(name, rt.surface)
	for _, v := range previewViews {
		if err := rt.surface.SetViewport(ctx, v); err != nil {
			return weberrors.NewSandboxAccessError("failed to set viewport", err)
		}
		out := rt.renderer.Render(ctx, doc, frame)
		if out.Err != nil {
			return out.Err
		}
		png, err := rt.surface.Screenshot(ctx, previewFullPage)
		if err != nil {
			return weberrors.NewSandboxAccessError("failed to capture screenshot", err)
		}
		path := filepath.Join(previewOutDir, fmt.Sprintf("%s-%s.png", name, v.Name))
		if err := os.WriteFile(path, png, 0o644); err != nil {
			return weberrors.NewIOError(weberrors.ErrCodeIO, "writing "+path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-8s %4dpx  %s\n", v.Name, v.PixelWidth(), path)
	}
	return nil
}
