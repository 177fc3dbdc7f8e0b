package source

import (
	"context"
	"embed"
	"io/fs"

	"github.com/leapstack-labs/leapflow/pkg/core"
)

//go:embed seeds/*.csv
var seedFS embed.FS

// SeedProvider serves the raw tables compiled into the binary, currently
// full_moon_dates.
type SeedProvider struct {
	csv *CSVProvider
}

// NewSeedProvider returns the embedded seed provider.
func NewSeedProvider() *SeedProvider {
	sub, err := fs.Sub(seedFS, "seeds")
	if err != nil {
		panic(err)
	}
	return &SeedProvider{csv: NewCSVProviderFS(sub, "embedded seeds")}
}

// Tables lists the seeded table names.
func (p *SeedProvider) Tables() ([]string, error) {
	return p.csv.Tables()
}

// RawTable implements Provider.
func (p *SeedProvider) RawTable(ctx context.Context, name string) (*core.Table, error) {
	return p.csv.RawTable(ctx, name)
}
