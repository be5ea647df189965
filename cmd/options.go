package cmd

// Options holds the shared command-line options for the langstats CLI.
// Empty values leave the configured setting in place.
type Options struct {
	Verbosity int
	LogFormat string

	Username   string
	SkillsFile string
	SkillsDSN  string
	Snapshot   string
	Workers    int
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithUsername overrides the configured GitHub login.
func WithUsername(username string) Option {
	return func(o *Options) {
		o.Username = username
	}
}

// WithSkillsFile overrides the configured skills file.
func WithSkillsFile(path string) Option {
	return func(o *Options) {
		o.SkillsFile = path
	}
}

// WithSnapshot overrides the snapshot mode (none, file, redis).
func WithSnapshot(mode string) Option {
	return func(o *Options) {
		o.Snapshot = mode
	}
}

// WithVerbosity sets the logging verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}
