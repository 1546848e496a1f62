package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/conneroisu/webgen/internal/editor"
	"github.com/conneroisu/webgen/internal/sandbox"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	editSelect    int
	editText      string
	editStyles    []string
	editImage     string
	editLink      string
	editRename    string
	editDelete    bool
	editDuplicate bool
	editSave      bool
	editPublish   bool
	editYes       bool
	editPrint     bool
	editBrowser   bool
)

var editCmd = &cobra.Command{
	Use:   "edit <website-id>",
	Short: "Apply scripted edits to a website",
	Long: `Load a website into an editing session and apply edits to one element,
addressed by its position in document order (0 is the first element of the
body).

Edits run through the same session the browser editor uses, so the saved
HTML carries no editor markers. With --browser the page is rendered in a
headless browser and computed styles come from it.

Examples:
  webgen edit 3f2a... --select 2 --text "Fresh coffee daily" --save
  webgen edit 3f2a... --select 0 --style color=#ff0000 --style font-size=24px --print
  webgen edit 3f2a... --select 4 --delete --yes --save
  webgen edit 3f2a... --rename "Corner Cafe" --publish`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)

	editCmd.Flags().IntVar(&editSelect, "select", -1, "Element to edit, by document order")
	editCmd.Flags().StringVar(&editText, "text", "", "Replace the element's text")
	editCmd.Flags().StringArrayVar(&editStyles, "style", nil, "Set a style property as prop=value (repeatable)")
	editCmd.Flags().StringVar(&editImage, "image", "", "Replace the image source")
	editCmd.Flags().StringVar(&editLink, "link", "", "Replace the link target")
	editCmd.Flags().StringVar(&editRename, "rename", "", "Rename the website")
	editCmd.Flags().BoolVar(&editDuplicate, "duplicate", false, "Duplicate the element after its edits")
	editCmd.Flags().BoolVar(&editDelete, "delete", false, "Delete the element")
	editCmd.Flags().BoolVar(&editSave, "save", false, "Save the website")
	editCmd.Flags().BoolVar(&editPublish, "publish", false, "Save and publish the website")
	editCmd.Flags().BoolVarP(&editYes, "yes", "y", false, "Do not ask before deleting")
	editCmd.Flags().BoolVar(&editPrint, "print", false, "Print the resulting HTML")
	editCmd.Flags().BoolVar(&editBrowser, "browser", false, "Render in a headless browser")
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	rt, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	steps, err := editSteps(cmd)
	if err != nil {
		return err
	}

	opts := editor.SessionOptions{
		Backend:  rt.backend,
		Logger:   rt.logger,
		Notifier: stderrNotifier(cmd),
		Renderer: sandbox.NewRenderer(sandbox.Options{
			MinDelay: -1,
			Ceiling:  rt.cfg.Render.Ceiling,
			Logger:   rt.logger,
		}),
		Confirmer: promptConfirmer(),
	}
	if editYes {
		opts.Confirmer = editor.AlwaysConfirm
	}
	if editBrowser {
		h, err := launchHeadless(ctx, rt.cfg, rt.logger)
		if err != nil {
			return err
		}
		defer h.close()
		opts.Frame = sandbox.NewFrame("edit", h.surface)
		opts.Resolver = h.surface
	} else {
		opts.Frame = sandbox.NewFrame("edit", sandbox.NewMemorySurface())
	}

	session, err := editor.NewSession(opts)
	if err != nil {
		return err
	}
	out, err := session.Load(ctx, args[0])
	if err != nil {
		return err
	}
	if !out.Ready() {
		if out.Err != nil {
			return out.Err
		}
		return fmt.Errorf("website %s did not render (%s)", args[0], out.State)
	}

	for _, m := range steps {
		events, err := session.Dispatch(ctx, m)
		if err != nil {
			return err
		}
		printSnapshots(cmd, events)
	}

	if editPrint {
		html, err := session.Serialize()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), html)
	}
	return nil
}

// editSteps turns the flags into the session messages they stand for, in
// the order a person would apply them.
func editSteps(cmd *cobra.Command) ([]editor.Message, error) {
	var steps []editor.Message
	if editRename != "" {
		steps = append(steps, editor.Message{Type: editor.MsgRename, Name: editRename})
	}

	elementEdits := editText != "" || len(editStyles) > 0 || editImage != "" ||
		editLink != "" || editDuplicate || editDelete
	if editSelect < 0 && elementEdits {
		return nil, errors.New("element edits need --select")
	}
	if editSelect >= 0 {
		steps = append(steps, editor.IndexMessage(editor.MsgSelect, editSelect))
		if cmd.Flags().Changed("text") {
			steps = append(steps, editor.Message{Type: editor.MsgUpdateText, Value: editText})
		}
		for _, kv := range editStyles {
			prop, value, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(prop) == "" {
				return nil, fmt.Errorf("style %q is not prop=value", kv)
			}
			steps = append(steps, editor.Message{
				Type:     editor.MsgUpdateStyle,
				Property: strings.TrimSpace(prop),
				Value:    strings.TrimSpace(value),
			})
		}
		if editImage != "" {
			steps = append(steps, editor.Message{Type: editor.MsgUpdateImage, Value: editImage})
		}
		if editLink != "" {
			steps = append(steps, editor.Message{Type: editor.MsgUpdateLink, Value: editLink})
		}
		if editDuplicate {
			steps = append(steps, editor.IndexMessage(editor.MsgDuplicate, editSelect))
		}
		if editDelete {
			steps = append(steps, editor.IndexMessage(editor.MsgDelete, editSelect))
		}
	}

	switch {
	case editPublish:
		steps = append(steps, editor.Message{Type: editor.MsgPublish})
	case editSave:
		steps = append(steps, editor.Message{Type: editor.MsgSave})
	}
	return steps, nil
}

func stderrNotifier(cmd *cobra.Command) editor.Notifier {
	return editor.NotifierFunc(func(_ context.Context, n editor.Notification) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", n.Level, n.Message)
	})
}

// promptConfirmer asks on the terminal. Answering no declines.
func promptConfirmer() editor.Confirmer {
	return editor.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		p := promptui.Prompt{Label: prompt, IsConfirm: true}
		if _, err := p.Run(); err != nil {
			if errors.Is(err, promptui.ErrAbort) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
}

func printSnapshots(cmd *cobra.Command, events []editor.Event) {
	for _, ev := range events {
		if ev.Type != editor.EventSnapshot || ev.Snapshot == nil {
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "selected <%s> %q\n", ev.Snapshot.Tag, ev.Snapshot.Text)
	}
}
