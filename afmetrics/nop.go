package afmetrics

// NopMeasure discards every observation.
// Use it when metrics collection is disabled.
type NopMeasure struct{}

func (NopMeasure) IncrementOwnFinalizedBlocks()   {}
func (NopMeasure) IncrementOwnHopelessBlocks()    {}
func (NopMeasure) UpdateBestBlock(uint64)         {}
func (NopMeasure) UpdateTopFinalizedBlock(uint64) {}
func (NopMeasure) ReportReorg(uint64)             {}
