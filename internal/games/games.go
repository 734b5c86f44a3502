// Package games wires the per-game match variants to their game types.
package games

import (
	"math/rand"

	"github.com/openzone-dev/zoneserver/internal/games/hearts"
	"github.com/openzone-dev/zoneserver/internal/games/spades"
	"github.com/openzone-dev/zoneserver/internal/games/tables"
	"github.com/openzone-dev/zoneserver/internal/match"
	"github.com/openzone-dev/zoneserver/internal/protocol"
)

// Options collects the tunable rule parameters of the card games.
type Options struct {
	Spades spades.Options
	Hearts hearts.Options
}

// DefaultOptions returns the standard rule parameters for every game.
func DefaultOptions() Options {
	return Options{
		Spades: spades.DefaultOptions(),
		Hearts: hearts.DefaultOptions(),
	}
}

// Factory returns a match.VariantFactory covering all five served games.
func Factory(opts Options) match.VariantFactory {
	return func(game protocol.GameType, _ *rand.Rand) match.Variant {
		switch game {
		case protocol.GameSpades:
			return spades.NewVariant(opts.Spades)
		case protocol.GameHearts:
			return hearts.NewVariant(opts.Hearts)
		default:
			cfg, ok := tables.ConfigFor(game)
			if !ok {
				return nil
			}
			return tables.NewVariant(cfg)
		}
	}
}
