package resolve

const (
	DefaultWorkers  = 8         // Default traversal worker count
	DefaultMaxDepth = 100       // Default maximum dependency depth
	DefaultMaxNodes = 10000     // Default maximum graph size
	DefaultVariant  = "runtime" // Variant selected when a dependency names none
)

// Options configures a resolution engine.
type Options struct {
	Workers        int                  // Concurrent traversal workers (default: 8)
	MaxDepth       int                  // Maximum depth to traverse (default: 100)
	MaxNodes       int                  // Maximum nodes to expand (default: 10000)
	DefaultVariant string               // Variant used when a dependency names none (default: "runtime")
	Policy         Policy               // Capability conflict policy (default: reject all)
	Logger         func(string, ...any) // Progress/error callback (optional)
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.DefaultVariant == "" {
		opts.DefaultVariant = DefaultVariant
	}
	if opts.Logger == nil {
		opts.Logger = func(string, ...any) {}
	}
	return opts
}
