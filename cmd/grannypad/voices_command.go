package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"grannypad/internal/speech"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voices",
		Short: "List synthesizer voices and show which one grandma would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			narrator := ctx.narrator(cfg, ctx.stderrLogger(cfg))
			defer narrator.Close()

			voices, err := narrator.Voices(cmd.Context())
			if err != nil {
				return err
			}
			picked, ok := speech.PickVoice(voices, cfg.Speech.Voices)

			rows := make([][]string, 0, len(voices))
			for _, v := range voices {
				mark := ""
				if ok && v == picked {
					mark = "*"
				}
				rows = append(rows, []string{mark, v.Name, v.Language, v.Gender, v.ID()})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"", "Voice", "Language", "Gender", "ID"}, rows, nil))
			if !ok {
				fmt.Fprintf(out, "No English voice found; %s will use its default.\n", cfg.Speech.Command)
			}
			if !cfg.Speech.Enabled {
				fmt.Fprintln(out, "Narration is off. Set speech.enabled = true to hear grandma.")
			}
			return nil
		},
	}
}
