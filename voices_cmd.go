package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/Horlarhyinka/ai-classroom/classroom"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the synthesis voices available to speakers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if apiURL == "" {
			return fmt.Errorf("an API URL is required (flag --api-url, config api_url, or CLASSROOM_API_URL)")
		}
		api, err := classroom.NewAPI(classroom.APIConfig{BaseURL: apiURL, Token: token}, log.Default())
		if err != nil {
			return err
		}
		voices, err := api.Voices(cmd.Context())
		if err != nil {
			return fmt.Errorf("unable to list voices: %w", err)
		}
		for _, v := range voices {
			line := fmt.Sprintf("%-24s %s", v.ID, v.Name)
			if v.Gender != "" {
				line += " (" + v.Gender + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}
