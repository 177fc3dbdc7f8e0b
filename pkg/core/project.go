package core

// TargetConfig holds warehouse target configuration as written in leapflow.yaml.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, sqlite, postgres

	// File-based warehouses (DuckDB, SQLite): file path, "" or ":memory:"
	// Postgres: database name
	Database string `koanf:"database"`

	// Network warehouses
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Schema outputs are materialized into
	Schema string `koanf:"schema"`

	// Additional driver-specific options (DuckDB settings, Postgres sslmode, ...)
	Options map[string]string `koanf:"options"`
}

// AdapterConfig converts the target into the connection settings an adapter takes.
func (t *TargetConfig) AdapterConfig() AdapterConfig {
	if t == nil {
		return AdapterConfig{}
	}
	cfg := AdapterConfig{
		Type:     t.Type,
		Database: t.Database,
		Host:     t.Host,
		Port:     t.Port,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
	}
	if t.Type != "postgres" {
		cfg.Path = t.Database
	}
	return cfg
}
