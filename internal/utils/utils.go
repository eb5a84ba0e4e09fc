// Copyright (c) 2026 The Altruist Authors
//
// Licensed under the Apache License, Version 2.0 (the "License"): you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

// Package utils holds the small zero-copy conversions the binary codec
// leans on to avoid per-frame allocation on the hot path.
package utils

import "unsafe"

// S2B reinterprets s as a byte slice without copying. The caller must not
// mutate the result, and must not retain it past the lifetime of s.
func S2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// B2S reinterprets b as a string without copying. The caller must not
// mutate b afterward.
func B2S(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}
