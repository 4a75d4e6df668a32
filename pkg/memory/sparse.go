package memory

// SparseVector holds the non-zero term weights of a scored document,
// keyed by vocabulary term ID.
type SparseVector map[int]float64

// Dot returns the dot product of two sparse vectors, iterating the
// smaller of the two.
func (v SparseVector) Dot(other SparseVector) float64 {
	if len(other) < len(v) {
		v, other = other, v
	}
	sum := 0.0
	for id, w := range v {
		if ow, ok := other[id]; ok {
			sum += w * ow
		}
	}
	return sum
}

// MilvusSparse is the {indices, values} pair vector-search backends
// consume. Indices and values are parallel slices.
type MilvusSparse struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// ToMilvus converts the vector to index/value pairs. Ordering is
// unspecified; conversion is otherwise lossless.
func (v SparseVector) ToMilvus() MilvusSparse {
	out := MilvusSparse{
		Indices: make([]int, 0, len(v)),
		Values:  make([]float64, 0, len(v)),
	}
	for id, w := range v {
		out.Indices = append(out.Indices, id)
		out.Values = append(out.Values, w)
	}
	return out
}

// FromMilvus rebuilds a sparse vector from index/value pairs. Extra
// indices beyond len(values) are ignored.
func FromMilvus(m MilvusSparse) SparseVector {
	n := len(m.Indices)
	if len(m.Values) < n {
		n = len(m.Values)
	}
	vec := make(SparseVector, n)
	for i := 0; i < n; i++ {
		vec[m.Indices[i]] = m.Values[i]
	}
	return vec
}
