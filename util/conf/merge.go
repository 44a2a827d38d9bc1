package conf

// MergeDefaults merges maps into one, prefixing every key with ns.
func MergeDefaults[M ~map[string]V, V any](ns string, maps ...M) M {
	fullCap := 0
	for _, m := range maps {
		fullCap += len(m)
	}

	merged := make(M, fullCap)
	for _, m := range maps {
		for key, val := range m {
			merged[ns+"."+key] = val
		}
	}

	return merged
}

// Merge merges maps into one. Later maps win.
func Merge[M ~map[string]V, V any](maps ...M) M {
	merged := make(M)
	for _, m := range maps {
		for key, val := range m {
			merged[key] = val
		}
	}

	return merged
}
