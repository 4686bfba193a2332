package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// voicesCmd lists the configured ElevenLabs voice aliases.
var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List configured synthesis voice aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		voices := appInstance.Config.Synthesis.ElevenLabs.Voices
		if len(voices) == 0 {
			fmt.Println("No voice aliases configured. voice_id values are sent to ElevenLabs unchanged.")
			return nil
		}

		aliases := make([]string, 0, len(voices))
		for alias := range voices {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Alias", "ElevenLabs Voice ID"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		for _, alias := range aliases {
			table.Append([]string{alias, voices[alias]})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}
