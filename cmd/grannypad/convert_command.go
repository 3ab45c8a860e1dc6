package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"grannypad/internal/capture"
	"grannypad/internal/todo"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var imagePath string
	var nag bool

	cmd := &cobra.Command{
		Use:   "convert [text...]",
		Short: "Turn text or a picture into tasks without opening the notepad",
		Example: `  grannypad convert "buy milk tomorrow and call mom on friday"
  grannypad convert --image poster.jpg --nag`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger := ctx.stderrLogger(cfg)
			client, err := ctx.geminiClient(cmd.Context(), &cfg, logger)
			if err != nil {
				return err
			}

			store := todo.NewStore()
			defer store.Close()
			opts := []capture.Option{capture.WithLogger(logger)}
			if !nag {
				opts = append(opts, capture.WithoutCommentary())
			}
			ctrl := capture.NewController(client, store, opts...)

			prompt := strings.TrimSpace(strings.Join(args, " "))
			if err := stageInput(cmd.Context(), ctrl, prompt, imagePath); err != nil {
				return err
			}
			res, err := ctrl.Submit(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if res.Outcome != capture.OutcomeAdded {
				fmt.Fprintln(out, res.Commentary)
				return nil
			}
			fmt.Fprintln(out, renderTaskTable(todo.SortForDisplay(store.Items())))
			if res.Commentary != "" {
				fmt.Fprintln(out)
				fmt.Fprintln(out, res.Commentary)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&imagePath, "image", "i", "", "Picture to read tasks from")
	cmd.Flags().BoolVar(&nag, "nag", false, "Ask grandma for a remark about the new tasks")
	return cmd
}

// stageInput loads text or an image into the controller's buffer.
func stageInput(ctx context.Context, ctrl *capture.Controller, prompt, imagePath string) error {
	switch {
	case imagePath != "" && prompt != "":
		return errors.New("pass either text or --image, not both")
	case imagePath != "":
		if _, err := ctrl.SelectModality(ctx, capture.ModalityImage); err != nil {
			return err
		}
		_, err := ctrl.LoadImage(imagePath)
		return err
	case prompt != "":
		ctrl.SetText(prompt)
		return nil
	default:
		return errors.New("nothing to convert: pass some text or --image")
	}
}

func renderTaskTable(items []todo.Item) string {
	rows := make([][]string, 0, len(items))
	for i, it := range items {
		due := todo.FormatDate(it.Due)
		if due == "" {
			due = "-"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), it.Text, due})
	}
	return renderTable([]string{"#", "Task", "Due"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
}
