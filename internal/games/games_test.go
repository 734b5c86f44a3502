package games

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzone-dev/zoneserver/internal/protocol"
)

func TestFactoryCoversEveryGame(t *testing.T) {
	factory := Factory(DefaultOptions())
	rng := rand.New(rand.NewSource(1))

	for gt := protocol.GameType(0); gt < protocol.NumGameTypes; gt++ {
		v := factory(gt, rng)
		require.NotNil(t, v, "no variant for %s", gt)
		assert.Equal(t, gt.RequiredPlayers(), v.RequiredPlayers(), "%s", gt)
	}
}

func TestFactoryRejectsUnknownGame(t *testing.T) {
	factory := Factory(DefaultOptions())
	assert.Nil(t, factory(protocol.GameType(99), rand.New(rand.NewSource(1))))
}
