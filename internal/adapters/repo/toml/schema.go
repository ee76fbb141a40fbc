package toml

const currentAccountsSchemaVersion = 1

type accountsFileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *accountsFileSchema) schemaVersion() *int       { return &s.Version }
func (s *accountsFileSchema) records() *[]accountSchema { return &s.Accounts }

type accountSchema struct {
	ID        string `toml:"id"`
	Name      string `toml:"name"`
	Avatar    string `toml:"avatar,omitempty"`
	Liveness  string `toml:"liveness"`
	SecretRef string `toml:"secret_ref,omitempty"`
}
