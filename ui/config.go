package ui

// Config contains TUI-specific configuration.
type Config struct {
	APIURL   string `env:"CLASSROOM_API_URL"`
	WSURL    string `env:"CLASSROOM_WS_URL"`
	Token    string `env:"CLASSROOM_TOKEN"`
	SynthURL string `env:"CLASSROOM_SYNTH_URL"`
	SynthKey string `env:"CLASSROOM_SYNTH_KEY"`

	HomeDir      string `env:"HOME"`
	GlamourStyle string `env:"GLAMOUR_STYLE"`

	// Document to open
	DocID string

	// Playback
	Voice    string
	Autoplay bool
	CacheDir string

	GlamourMaxWidth uint
	EnableMouse     bool
}
