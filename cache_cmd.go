package main

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Horlarhyinka/ai-classroom/speech/synth"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the synthesized audio cache",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		dir, err := cacheDir()
		if err != nil {
			return err
		}
		stats, err := synth.NewCache(dir).DiskStats()
		if err != nil {
			return fmt.Errorf("unable to read cache: %w", err)
		}
		fmt.Printf("Cache directory: %s\n", dir)
		fmt.Printf("Entries: %d (%s)\n", stats.Entries, stats.HumanBytes())
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all cached audio",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		dir, err := cacheDir()
		if err != nil {
			return err
		}
		if err := synth.NewCache(dir).Purge(); err != nil {
			return fmt.Errorf("unable to purge cache: %w", err)
		}
		fmt.Println("Purged audio cache:", dir)
		return nil
	},
}

func cacheDir() (string, error) {
	if dir := viper.GetString("synth.cache_dir"); dir != "" {
		return homedir.Expand(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to find home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "ai-classroom"), nil
}

func init() {
	cacheCmd.AddCommand(cachePurgeCmd)
}
