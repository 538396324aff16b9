package config

// Default configuration values.
const (
	DefaultPipelinesDir = "pipelines"
	DefaultStatePath    = ".sqlflow/state.db"
	DefaultTargetType   = "duckdb"
)

// ApplyDefaults applies default values to a ProjectConfig.
func (c *ProjectConfig) ApplyDefaults() {
	if c.PipelinesDir == "" {
		c.PipelinesDir = DefaultPipelinesDir
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStatePath
	}
	if c.Target == nil {
		c.Target = &TargetConfig{}
	}
	c.Target.ApplyDefaults()
	for name := range c.Profiles {
		profile := c.Profiles[name]
		if profile.Target != nil {
			profile.Target.ApplyDefaults()
		}
	}
}

// ApplyDefaults applies type-dependent default values to a TargetConfig.
func (t *TargetConfig) ApplyDefaults() {
	if t.Type == "" {
		t.Type = DefaultTargetType
	}
	switch t.Type {
	case "duckdb":
		if t.Schema == "" {
			t.Schema = "main"
		}
	case "postgres":
		if t.Schema == "" {
			t.Schema = "public"
		}
		if t.Port == 0 {
			t.Port = 5432
		}
	}
}
