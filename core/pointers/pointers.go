// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

// Package pointers has helpers for the optional fields of update requests
package pointers

// To returns a pointer to the value passed as parameter
func To[T any](v T) *T {
	return &v
}

// ValueOr returns the value from ptr or fallback if the pointer is nil
func ValueOr[T any](ptr *T, fallback T) T {
	if ptr != nil {
		return *ptr
	}
	return fallback
}

// SafeString returns the value from ptr or "" if the pointer is nil
func SafeString(ptr *string) string {
	return ValueOr(ptr, "")
}
