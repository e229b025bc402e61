package query

// Measurement is the per-query record appended to the run log (spec §3,
// §4.H/§4.I).
type Measurement struct {
	ElapsedNs   int64 `json:"elapsedNs"`
	ResultCount int   `json:"resultCount"`
}
