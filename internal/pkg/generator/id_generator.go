package generator

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// IDGenerator produces identifiers for the marketplace entities. Bids use
// ULIDs so their ids sort by placement time; everything else uses UUIDs.
type IDGenerator struct{}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

func (g *IDGenerator) NewItemID() string {
	return uuid.NewString()
}

func (g *IDGenerator) NewOfferID() string {
	return uuid.NewString()
}

func (g *IDGenerator) NewTransactionID() string {
	return uuid.NewString()
}

func (g *IDGenerator) NewEventID() string {
	return uuid.NewString()
}

func (g *IDGenerator) NewBidID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
