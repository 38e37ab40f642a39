package resolver

import (
	"context"

	"github.com/sells-group/taxroll-cli/internal/addr"
	"github.com/sells-group/taxroll-cli/internal/model"
	"github.com/sells-group/taxroll-cli/pkg/nominatim"
)

// NominatimFactory returns a ClientFactory that builds one Nominatim
// client per worker from cfg.
func NominatimFactory(cfg nominatim.Config) ClientFactory {
	return func() (addr.Resolver, error) {
		client, err := nominatim.NewClient(cfg)
		if err != nil {
			return nil, err
		}
		return nominatimResolver{client: client}, nil
	}
}

// nominatimResolver adapts the nominatim client to the parser-chain
// Resolver interface, folding a spelled-out state name back to its
// USPS abbreviation when it maps cleanly.
type nominatimResolver struct {
	client *nominatim.Client
}

func (r nominatimResolver) Resolve(ctx context.Context, address string) (*model.NormalizedAddress, error) {
	found, err := r.client.Search(ctx, address)
	if err != nil || found == nil {
		return nil, err
	}

	state := found.State
	if abbr := addr.StateAbbrev(state); abbr != "" {
		state = abbr
	}

	return &model.NormalizedAddress{
		Street: found.Street,
		City:   found.City,
		State:  state,
		Zip:    found.Zip,
	}, nil
}
