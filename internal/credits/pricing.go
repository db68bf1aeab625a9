package credits

const (
	// CreditsPerDollar converts backend list prices into credits.
	CreditsPerDollar = 100

	DefaultConceptPrice    int64 = 50
	DefaultVideoScenePrice int64 = 20
)

// Pricing holds the flat credit prices charged per operation.
type Pricing struct {
	ConceptBatch  int64
	VideoPerScene int64
}

// DefaultPricing returns the standard price list.
func DefaultPricing() Pricing {
	return Pricing{ConceptBatch: DefaultConceptPrice, VideoPerScene: DefaultVideoScenePrice}
}

// ConceptCost is the price of one concept batch.
func (p Pricing) ConceptCost() int64 { return p.ConceptBatch }

// VideoCost is the price of a video with the given number of scenes.
func (p Pricing) VideoCost(scenes int) int64 {
	if scenes <= 0 {
		return 0
	}
	return p.VideoPerScene * int64(scenes)
}
