package metrics

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordScan(string, float64, int)   {}
func (Nop) RecordCacheHit(string)             {}
func (Nop) RecordFetchError(string)           {}
func (Nop) RecordFallback(string)             {}
func (Nop) RecordSelection(string, string)    {}
func (Nop) RecordOutcome(string, bool)        {}
func (Nop) RecordError(string)                {}
