package matching

// Factory builds one engine per run so request-scoped overrides never leak
// into later runs.
type Factory struct {
	base Config
	deps Dependencies
}

func NewFactory(base Config, deps Dependencies) *Factory {
	return &Factory{base: base, deps: deps}
}

// New applies the overrides to the base configuration and validates the
// result before any work starts.
func (f *Factory) New(overrides Overrides) (*Engine, error) {
	return NewEngine(f.base.Apply(overrides), f.deps)
}
