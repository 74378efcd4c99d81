// Package main provides the entry point for the classroom CLI application.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	homedir "github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Horlarhyinka/ai-classroom/classroom"
	"github.com/Horlarhyinka/ai-classroom/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	apiURL     string
	wsURL      string
	token      string
	synthURL   string
	synthKey   string
	voice      string
	userName   string
	autoplay   bool
	mouse      bool
	width      uint

	rootCmd = &cobra.Command{
		Use:   "classroom DOC_ID",
		Short: "Read documents and join AI class discussions from the terminal",
		Long: "\nOpen a document as an interactive classroom: read its chapters" +
			" and listen to them, or join a live discussion where AI teachers" +
			" and students talk it through with you.",
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ExactArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return runTUI(args[0])
		},
	}

	manCmd = &cobra.Command{
		Use:    "man",
		Short:  "Generate man page",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			manPage, err := mcobra.NewManPage(1, rootCmd)
			if err != nil {
				return fmt.Errorf("unable to generate man page: %w", err)
			}
			_, err = fmt.Fprint(os.Stdout, manPage.Build(roff.NewDocument()))
			if err != nil {
				return fmt.Errorf("unable to write man page: %w", err)
			}
			return nil
		},
	}
)

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	apiURL = viper.GetString("api_url")
	wsURL = viper.GetString("ws_url")
	token = viper.GetString("token")
	synthURL = viper.GetString("synth.url")
	synthKey = viper.GetString("synth.api_key")
	voice = viper.GetString("synth.voice")
	autoplay = viper.GetBool("autoplay")
	mouse = viper.GetBool("mouse")
	width = viper.GetUint("width")
	userName = viper.GetString("name")

	if wsURL == "" {
		// The realtime feed usually lives next to the REST API.
		wsURL = apiURL
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if term.IsTerminal(int(os.Stdout.Fd())) && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func runTUI(docID string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	if apiURL == "" && cfg.APIURL == "" {
		return errors.New("an API URL is required (flag --api-url, config api_url, or CLASSROOM_API_URL)")
	}
	if synthURL == "" && cfg.SynthURL == "" {
		return errors.New("a synthesis URL is required (flag --synth-url or config synth.url)")
	}

	if cfg.APIURL == "" {
		cfg.APIURL = apiURL
	}
	if cfg.WSURL == "" {
		cfg.WSURL = wsURL
	}
	if cfg.Token == "" {
		cfg.Token = token
	}
	if cfg.SynthURL == "" {
		cfg.SynthURL = synthURL
	}
	if cfg.SynthKey == "" {
		cfg.SynthKey = synthKey
	}
	cfg.DocID = docID
	cfg.Voice = voice
	cfg.Autoplay = autoplay
	cfg.EnableMouse = mouse
	cfg.GlamourMaxWidth = width

	if dir := viper.GetString("synth.cache_dir"); dir != "" {
		expanded, err := homedir.Expand(dir)
		if err != nil {
			return fmt.Errorf("invalid cache dir: %w", err)
		}
		cfg.CacheDir = expanded
	}

	name := userName
	if name == "" {
		name = "You"
	}
	self := classroom.Persona{ID: viper.GetString("user_id"), Name: name, IsUser: true}

	app, err := ui.NewApp(cfg, self, log.Default())
	if err != nil {
		return err
	}
	defer app.Shutdown()

	if _, err := ui.NewProgram(cfg, app).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// setupLog redirects logging to a file; stdout belongs to the TUI.
func setupLog() (func() error, error) {
	logFile := os.Getenv("CLASSROOM_LOGFILE")
	if logFile == "" {
		scope := gap.NewScope(gap.User, "ai-classroom")
		path, err := scope.LogPath("classroom.log")
		if err != nil {
			return nil, fmt.Errorf("unable to resolve log path: %w", err)
		}
		logFile = path
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetReportTimestamp(true)
	if os.Getenv("CLASSROOM_DEBUG") != "" {
		log.SetLevel(log.DebugLevel)
	}
	return f.Close, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "classroom API base URL")
	rootCmd.Flags().StringVar(&wsURL, "ws-url", "", "realtime feed URL (defaults to the API URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "API auth token")
	rootCmd.Flags().StringVar(&synthURL, "synth-url", "", "speech synthesis API base URL")
	rootCmd.Flags().StringVar(&synthKey, "synth-key", "", "speech synthesis API key")
	rootCmd.Flags().StringVar(&voice, "voice", "", "fallback voice for speakers without one")
	rootCmd.Flags().StringVar(&userName, "name", "", "display name for your messages")
	rootCmd.Flags().BoolVar(&autoplay, "autoplay", false, "speak new turns as they arrive")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to detect)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
	_ = viper.BindPFlag("ws_url", rootCmd.Flags().Lookup("ws-url"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	_ = viper.BindPFlag("synth.url", rootCmd.Flags().Lookup("synth-url"))
	_ = viper.BindPFlag("synth.api_key", rootCmd.Flags().Lookup("synth-key"))
	_ = viper.BindPFlag("synth.voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("name", rootCmd.Flags().Lookup("name"))
	_ = viper.BindPFlag("autoplay", rootCmd.Flags().Lookup("autoplay"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("width", 0)
	viper.SetDefault("autoplay", false)
	viper.SetDefault("synth.voice", "")

	rootCmd.AddCommand(configCmd, cacheCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "ai-classroom")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "ai-classroom")}, dirs...)
	}

	if c := os.Getenv("CLASSROOM_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("classroom")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("classroom")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "classroom.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
