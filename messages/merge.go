package messages

// Direction says where newly fetched messages go relative to the buffer.
type Direction int

const (
	// Prepend places older pages before the existing buffer.
	Prepend Direction = iota
	// Append places newly observed messages after the existing buffer.
	Append
)

func (d Direction) String() string {
	if d == Prepend {
		return "prepend"
	}
	return "append"
}

// Merge integrates candidates into buffer, dropping any candidate whose id is
// already buffered or repeated earlier in the batch. Neither input is
// modified. added is the number of candidates that made it in.
func Merge(buffer, candidates []Message, dir Direction) (merged []Message, added int) {
	seen := make(map[string]struct{}, len(buffer)+len(candidates))
	for _, m := range buffer {
		seen[m.ID] = struct{}{}
	}

	unique := make([]Message, 0, len(candidates))
	for _, m := range candidates {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		unique = append(unique, m)
	}

	merged = make([]Message, 0, len(buffer)+len(unique))
	if dir == Prepend {
		merged = append(merged, unique...)
		merged = append(merged, buffer...)
	} else {
		merged = append(merged, buffer...)
		merged = append(merged, unique...)
	}
	return merged, len(unique)
}
