package okx

import (
	"testing"
	"time"

	"github.com/aristath/sentinel-okx/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRESTClientSignIsDeterministic(t *testing.T) {
	c := NewRESTClient(Credentials{APIKey: "k", APISecret: "s", Passphrase: "p"}, "https://example.com", zerolog.Nop())
	sig1 := c.sign("hello")
	sig2 := c.sign("hello")
	assert.Equal(t, sig1, sig2)

	other := NewRESTClient(Credentials{APIKey: "k", APISecret: "different", Passphrase: "p"}, "https://example.com", zerolog.Nop())
	assert.NotEqual(t, sig1, other.sign("hello"))
}

func TestToDomainState(t *testing.T) {
	assert.Equal(t, domain.OrderAcknowledged, ToDomainState("live"))
	assert.Equal(t, domain.OrderPartiallyFilled, ToDomainState("partially_filled"))
	assert.Equal(t, domain.OrderFilled, ToDomainState("filled"))
	assert.Equal(t, domain.OrderCancelled, ToDomainState("canceled"))
}

func TestBackoffDelayCapsAndGrows(t *testing.T) {
	d1 := backoffDelay(1)
	d5 := backoffDelay(5)
	d20 := backoffDelay(20)

	assert.Less(t, d1, d5)
	assert.LessOrEqual(t, d20, maxReconnectDelay+time.Duration(float64(maxReconnectDelay)*0.4))
}

func TestStreamClientInitialState(t *testing.T) {
	c := NewStreamClient("wss://example.com", Credentials{}, nil, zerolog.Nop())
	assert.Equal(t, StateDisconnected, c.State())
}
