package utils

// BatchStrings splits items into consecutive batches of at most batchSize.
func BatchStrings(items []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = len(items)
	}
	if len(items) == 0 {
		return [][]string{}
	}

	var batches [][]string
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}

// SafeDeref returns getter(*ptr), or the zero value of R when ptr is nil.
func SafeDeref[T any, R any](ptr *T, getter func(T) R) R {
	var zero R
	if ptr == nil {
		return zero
	}
	return getter(*ptr)
}
